package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// loanLocks serializes work on a single loan while letting different loans
// proceed in parallel. Entries are dropped once nobody holds or waits on them.
type loanLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*loanLock
}

type loanLock struct {
	mu   sync.Mutex
	refs int
}

func newLoanLocks() *loanLocks {
	return &loanLocks{locks: make(map[uuid.UUID]*loanLock)}
}

// lock blocks until the caller owns loanID and returns the release func.
func (l *loanLocks) lock(loanID uuid.UUID) func() {
	l.mu.Lock()
	ll, ok := l.locks[loanID]
	if !ok {
		ll = &loanLock{}
		l.locks[loanID] = ll
	}
	ll.refs++
	l.mu.Unlock()

	ll.mu.Lock()

	return func() {
		ll.mu.Unlock()

		l.mu.Lock()
		ll.refs--
		if ll.refs == 0 {
			delete(l.locks, loanID)
		}
		l.mu.Unlock()
	}
}

func (l *loanLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
