package app

import (
	"sort"
	"sync"
)

// accountLocks serializes movements touching the same account within this
// process. The balance store's row locks already prevent lost updates at the
// database; this keeps whole sagas on one account from interleaving, so a
// sufficiency precheck stays valid until its debit runs.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (a *accountLocks) get(account string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.locks[account]
	if !ok {
		m = &sync.Mutex{}
		a.locks[account] = m
	}
	return m
}

// Lock acquires the mutexes for every given account in sorted order, so two
// sagas locking overlapping account sets cannot deadlock. The returned
// function releases them in reverse order.
func (a *accountLocks) Lock(accounts ...string) func() {
	unique := make([]string, 0, len(accounts))
	seen := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		if acct != "" && !seen[acct] {
			seen[acct] = true
			unique = append(unique, acct)
		}
	}
	sort.Strings(unique)

	held := make([]*sync.Mutex, 0, len(unique))
	for _, acct := range unique {
		m := a.get(acct)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
