package nbsftp

import (
	"sync"
)

// Library is process-wide state shared by every engine of one kind.
// It is set up when the first reference is acquired and torn down when the
// last one is released.
type Library struct {
	mu   sync.Mutex
	refs int

	setup    func() error
	teardown func()
}

// NewLibrary returns a Library that runs setup on first use and teardown after last use.
// Either function may be nil.
func NewLibrary(setup func() error, teardown func()) *Library {
	return &Library{setup: setup, teardown: teardown}
}

// Acquire takes a reference, setting the library up if it was unused.
// A failed setup leaves the library unused.
func (l *Library) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 && l.setup != nil {
		if err := l.setup(); err != nil {
			return err
		}
	}

	l.refs++
	return nil
}

// Release drops a reference taken with Acquire.
func (l *Library) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 {
		return
	}

	l.refs--
	if l.refs == 0 && l.teardown != nil {
		l.teardown()
	}
}

// Refs returns the number of references currently held.
func (l *Library) Refs() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.refs
}
