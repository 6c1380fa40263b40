package sync

import (
	gosync "sync"

	"github.com/nhle/efficio/internal/model"
)

type recordKey struct {
	coll model.Collection
	id   int64
}

type lockEntry struct {
	mu   gosync.Mutex
	refs int
}

// recordLocks serializes work on individual records. Entries are dropped
// once nobody holds or waits for them.
type recordLocks struct {
	mu      gosync.Mutex
	entries map[recordKey]*lockEntry
}

func newRecordLocks() *recordLocks {
	return &recordLocks{entries: make(map[recordKey]*lockEntry)}
}

// lock blocks until the record is free and returns the matching unlock.
func (l *recordLocks) lock(coll model.Collection, id int64) func() {
	key := recordKey{coll: coll, id: id}

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
