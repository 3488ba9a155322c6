package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "finledger/internal/errors"
)

// accountLocks serializes balance-affecting work per account. Locks are
// always acquired in ascending account-id order so a transfer touching two
// accounts can never deadlock against another transfer on the same pair.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (a *accountLocks) get(id string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.locks[id]
	if !ok {
		m = &sync.Mutex{}
		a.locks[id] = m
	}
	return m
}

// Acquire locks the given account ids in ascending order and returns a
// release function that unlocks them in reverse.
func (a *accountLocks) Acquire(ids ...string) func() {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, id := range uniq {
		m := a.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

const (
	maxCommitAttempts = 3
	retryBackoff      = 25 * time.Millisecond
)

// withRetry runs fn up to maxCommitAttempts times, backing off between
// attempts on transient storage conflicts. Application errors are returned
// immediately; a conflict that survives all attempts surfaces as
// CONCURRENCY_CONFLICT.
func withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if _, ok := err.(*apperrors.AppError); ok {
			return err
		}
		if !isTransient(err) {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		time.Sleep(time.Duration(attempt) * retryBackoff)
	}
	return apperrors.Wrap(apperrors.ErrConcurrencyConflict, err)
}

// isTransient recognizes lock/serialization failures worth retrying across
// the supported drivers (sqlite busy, postgres deadlock/serialization).
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"busy", "locked", "deadlock", "serialization", "could not serialize"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
