package quota

import (
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Reservation is quota charged ahead of a write. It must end with exactly one
// effective Commit or Rollback; extra calls are no-ops.
type Reservation struct {
	st    *scopeState
	scope models.Scope
	n     int64
	// done is guarded by st.mu.
	done bool
}

// Hold charges n bytes to scope as an open reservation. It fails with
// common.ErrQuotaExceeded when the ceiling would be crossed.
func (l *Ledger) Hold(scope models.Scope, n int64) (*Reservation, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative reservation %d: %w", n, common.ErrValidation)
	}
	st, ok := l.state(scope)
	if !ok {
		return nil, fmt.Errorf("scope %s: %w", scope, common.ErrorNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gone {
		return nil, fmt.Errorf("scope %s: %w", scope, common.ErrorNotFound)
	}
	if st.used+n > st.ceiling {
		return nil, fmt.Errorf("scope %s needs %d bytes, %d of %d used: %w",
			scope, n, st.used, st.ceiling, common.ErrQuotaExceeded)
	}
	st.used += n
	st.pending += n

	return &Reservation{st: st, scope: scope, n: n}, nil
}

// Bytes returns the reserved amount.
func (r *Reservation) Bytes() int64 { return r.n }

// Scope returns the scope charged.
func (r *Reservation) Scope() models.Scope { return r.scope }

// Commit runs persist under the scope lock and, if it succeeds, turns the
// reservation into regular usage. A scope forgotten since Hold fails with
// common.ErrorNotFound without calling persist. On error the reservation
// stays open and the caller is expected to Rollback.
func (r *Reservation) Commit(persist func() error) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if r.st.gone {
		return fmt.Errorf("scope %s: %w", r.scope, common.ErrorNotFound)
	}
	if err := persist(); err != nil {
		return err
	}
	if !r.done {
		r.done = true
		r.st.pending = clamp(r.st.pending - r.n)
	}
	return nil
}

// Rollback returns the reserved bytes.
func (r *Reservation) Rollback() {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if r.done {
		return
	}
	r.done = true
	r.st.used = clamp(r.st.used - r.n)
	r.st.pending = clamp(r.st.pending - r.n)
}
