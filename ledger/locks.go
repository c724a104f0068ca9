package ledger

import (
	"sort"
	"sync"
)

// partyLocks serializes writers per party. Entries are reference counted
// and dropped when the last holder releases, so the map stays bounded by
// the number of parties being written right now.
type partyLocks struct {
	mu    sync.Mutex
	locks map[PartyID]*partyLock
}

type partyLock struct {
	mu   sync.Mutex
	refs int
}

func newPartyLocks() *partyLocks {
	return &partyLocks{locks: make(map[PartyID]*partyLock)}
}

// lock acquires every id in sorted order and returns the release func.
// Sorting keeps two multi-party writers from deadlocking each other.
func (p *partyLocks) lock(ids ...PartyID) func() {
	uniq := make([]PartyID, 0, len(ids))
	seen := make(map[PartyID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	held := make([]*partyLock, 0, len(uniq))
	for _, id := range uniq {
		p.mu.Lock()
		l, ok := p.locks[id]
		if !ok {
			l = &partyLock{}
			p.locks[id] = l
		}
		l.refs++
		p.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			p.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(p.locks, uniq[i])
			}
			p.mu.Unlock()
		}
	}
}
