package callline

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Entry is a saved caller.
type Entry struct {
	Studio      string
	Contact     string
	PhoneNumber string
	SavedAt     time.Time
}

// PhoneBook stores callers saved by operators.
type PhoneBook interface {
	// Save stores the entry, replacing any entry with the same number, and returns it.
	Save(entry Entry) Entry
}

// MemoryPhoneBook is a PhoneBook keyed by phone number.
type MemoryPhoneBook struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryPhoneBook returns an empty phone book.
func NewMemoryPhoneBook() *MemoryPhoneBook {
	return &MemoryPhoneBook{entries: make(map[string]Entry)}
}

// Save implements PhoneBook. An existing contact name is kept when the new one is empty.
func (p *MemoryPhoneBook) Save(entry Entry) Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.entries[entry.PhoneNumber]; ok && entry.Contact == "" {
		entry.Contact = prev.Contact
	}

	p.entries[entry.PhoneNumber] = entry

	return entry
}

// Lookup returns the entry saved for number.
func (p *MemoryPhoneBook) Lookup(number string) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[number]

	return e, ok
}

// Entries returns all entries sorted by contact name.
func (p *MemoryPhoneBook) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Contact, b.Contact)
	})

	return out
}
