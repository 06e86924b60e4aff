package callline

import "slices"

// Switchboard holds one Board per studio.
type Switchboard struct {
	studios []string
	boards  map[string]*Board
}

// NewSwitchboard creates a board of size lines for every studio.
func NewSwitchboard(studios []string, size int, opts ...Option) *Switchboard {
	s := &Switchboard{
		studios: slices.Clone(studios),
		boards:  make(map[string]*Board, len(studios)),
	}

	for _, id := range studios {
		s.boards[id] = NewBoard(id, size, opts...)
	}

	return s
}

// Board returns the board of studio.
func (s *Switchboard) Board(studio string) (*Board, error) {
	b, ok := s.boards[studio]
	if !ok {
		return nil, ErrStudioNotFound
	}

	return b, nil
}

// Studios returns the studio identifiers in configuration order.
func (s *Switchboard) Studios() []string {
	return slices.Clone(s.studios)
}
