package pagination

import (
	"time"

	"github.com/google/uuid"
)

// Cursor tracks the last page committed for a source.
type Cursor struct {
	// Page is the last page index fetched successfully (0 after a source swap)
	Page   int
	Source Source
}

// Session is the pagination state of one navigation. It is replaced, never
// reset, when the source changes.
type Session struct {
	ID        uuid.UUID
	Started   time.Time
	cursor    Cursor
	gate      Gate
	exhausted bool
}

func newSession(src Source) *Session {
	return &Session{
		ID:      uuid.New(),
		Started: time.Now(),
		cursor:  Cursor{Page: 0, Source: src},
	}
}
