// Package quota implements the quota ledger: per-scope byte usage counters
// with capacity ceilings, reservations and reconciliation against the sizes
// of live artifacts.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// SizeSource reports the total size of live artifacts owned by a scope.
type SizeSource interface {
	SumSizes(ctx context.Context, scope models.Scope) (int64, error)
}

// Status is the display form of a scope's quota.
type Status struct {
	UsedBytes    int64
	CeilingBytes int64
}

type scopeState struct {
	mu      sync.Mutex
	ceiling int64
	used    int64
	// pending is the part of used held by reservations that are not yet
	// backed by a persisted artifact.
	pending int64
	gone    bool
}

// Ledger tracks usage for every registered scope. Each scope carries its own
// lock; the map lock is only held to look scopes up.
type Ledger struct {
	mu     sync.RWMutex
	scopes map[models.Scope]*scopeState

	sizes  SizeSource
	logger logging.Logger
}

// NewLedger creates an empty ledger. sizes is consulted by Reconcile.
func NewLedger(sizes SizeSource, logger logging.Logger) *Ledger {
	return &Ledger{
		scopes: make(map[models.Scope]*scopeState),
		sizes:  sizes,
		logger: logger.With("module", "quota"),
	}
}

// Register adds scope with the given ceiling and zero usage. Registering a
// known scope only updates its ceiling.
func (l *Ledger) Register(scope models.Scope, ceiling int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st, ok := l.scopes[scope]; ok {
		st.mu.Lock()
		st.ceiling = ceiling
		st.mu.Unlock()
		return
	}
	l.scopes[scope] = &scopeState{ceiling: ceiling}
}

// Forget drops scope. Later reservations against it fail.
func (l *Ledger) Forget(scope models.Scope) {
	l.mu.Lock()
	st, ok := l.scopes[scope]
	delete(l.scopes, scope)
	l.mu.Unlock()

	if ok {
		st.mu.Lock()
		st.gone = true
		st.mu.Unlock()
	}
}

// SetCeiling changes the ceiling of a registered scope. Usage above the new
// ceiling is kept; it only blocks further reservations.
func (l *Ledger) SetCeiling(scope models.Scope, ceiling int64) error {
	st, ok := l.state(scope)
	if !ok {
		return fmt.Errorf("scope %s: %w", scope, common.ErrorNotFound)
	}
	st.mu.Lock()
	st.ceiling = ceiling
	st.mu.Unlock()
	return nil
}

func (l *Ledger) state(scope models.Scope) (*scopeState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st, ok := l.scopes[scope]
	return st, ok
}

// Reserve charges n bytes to scope if usage+n stays within the ceiling.
func (l *Ledger) Reserve(scope models.Scope, n int64) bool {
	if n < 0 {
		return false
	}
	st, ok := l.state(scope)
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gone || st.used+n > st.ceiling {
		return false
	}
	st.used += n
	return true
}

// Release returns n bytes to scope. Usage never drops below zero.
func (l *Ledger) Release(scope models.Scope, n int64) {
	st, ok := l.state(scope)
	if !ok || n <= 0 {
		return
	}

	st.mu.Lock()
	st.used = clamp(st.used - n)
	st.mu.Unlock()
}

// ReleaseAfter runs remove under the scope lock and, if it succeeds, returns
// n bytes to scope before unlocking. remove must be fast: it is meant for
// dropping the artifact record, not for physical I/O.
func (l *Ledger) ReleaseAfter(scope models.Scope, n int64, remove func() error) error {
	st, ok := l.state(scope)
	if !ok {
		return remove()
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := remove(); err != nil {
		return err
	}
	if n > 0 {
		st.used = clamp(st.used - n)
	}
	return nil
}

// Usage returns the bytes currently charged to scope, 0 for unknown scopes.
func (l *Ledger) Usage(scope models.Scope) int64 {
	st, ok := l.state(scope)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.used
}

// Status returns usage and ceiling of scope.
func (l *Ledger) Status(scope models.Scope) (Status, error) {
	st, ok := l.state(scope)
	if !ok {
		return Status{}, fmt.Errorf("scope %s: %w", scope, common.ErrorNotFound)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return Status{UsedBytes: st.used, CeilingBytes: st.ceiling}, nil
}

// Reconcile replaces the usage counter of scope with the sum of its live
// artifact sizes plus the bytes held by open reservations. The scope stays
// locked while the sum is computed, so commits and releases cannot interleave.
func (l *Ledger) Reconcile(ctx context.Context, scope models.Scope) error {
	st, ok := l.state(scope)
	if !ok {
		return fmt.Errorf("scope %s: %w", scope, common.ErrorNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	live, err := l.sizes.SumSizes(ctx, scope)
	if err != nil {
		return fmt.Errorf("sum sizes of %s: %w", scope, err)
	}

	want := live + st.pending
	if want != st.used {
		l.logger.Warn(ctx, "quota drift corrected", "scope", scope.String(), "was", st.used, "now", want)
	}
	st.used = want
	return nil
}

// ReconcileAll reconciles every registered scope and returns the first error.
func (l *Ledger) ReconcileAll(ctx context.Context) error {
	l.mu.RLock()
	scopes := make([]models.Scope, 0, len(l.scopes))
	for s := range l.scopes {
		scopes = append(scopes, s)
	}
	l.mu.RUnlock()

	var firstErr error
	for _, s := range scopes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Reconcile(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run reconciles all scopes every interval until ctx is done.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.ReconcileAll(ctx); err != nil {
				l.logger.Error(ctx, "quota reconciliation failed", "error", err)
			}
		}
	}
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
