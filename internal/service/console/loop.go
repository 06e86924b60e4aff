package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/oshokin/studio-control/internal/logger"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("usage")
)

// printer serializes console output between the command loop and record updates.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// commandLoop feeds input lines to execute until ctx is done.
// Closed input keeps the console running.
func commandLoop(ctx context.Context, input io.Reader, out *printer, execute func(context.Context, string) error) error {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				logger.Info(ctx, "Input closed, console keeps running until interrupted")

				lines = nil

				continue
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := execute(ctx, line); err != nil {
				logger.InfoKV(ctx, "Command rejected", "command", line, "error", err)
				out.printf("rejected: %v", err)
			}
		}
	}
}

// usage builds a usage error for a command.
func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}
