package rebalancing

import "sync"

// portfolioLocks serializes rebalance runs per portfolio. Two concurrent
// invocations for the same portfolio never interleave; different
// portfolios proceed independently.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newPortfolioLocks() *portfolioLocks {
	return &portfolioLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire blocks until the portfolio's lock is held and returns the
// release function. Callers must release on every terminal path.
func (l *portfolioLocks) acquire(portfolioID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[portfolioID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[portfolioID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
