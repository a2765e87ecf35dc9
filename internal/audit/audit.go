// Package audit records the append-only trail of mutating actions. Recording
// never fails the operation it describes: persistence errors are logged and
// swallowed.
package audit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

// Action is the kind of an audited event.
type Action string

const (
	ActionUpload         Action = "upload"
	ActionDuplicate      Action = "duplicate"
	ActionNewVersion     Action = "new-version"
	ActionDelete         Action = "delete"
	ActionFavoriteToggle Action = "favorite-toggle"
	ActionTagAdd         Action = "tag-add"
	ActionTagRemove      Action = "tag-remove"
	ActionAnnotate       Action = "annotate"
	ActionShareCreate    Action = "share-create"
	ActionShareRevoke    Action = "share-revoke"
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"

	ActionSpaceCreate  Action = "space-create"
	ActionSpaceDelete  Action = "space-delete"
	ActionMemberAdd    Action = "member-add"
	ActionMemberRemove Action = "member-remove"
	ActionVersionPrune Action = "version-prune"
	ActionSecretUpdate Action = "secret-update"
)

var knownActions = map[Action]struct{}{
	ActionUpload: {}, ActionDuplicate: {}, ActionNewVersion: {}, ActionDelete: {},
	ActionFavoriteToggle: {}, ActionTagAdd: {}, ActionTagRemove: {}, ActionAnnotate: {},
	ActionShareCreate: {}, ActionShareRevoke: {}, ActionLogin: {}, ActionLogout: {},
	ActionSpaceCreate: {}, ActionSpaceDelete: {}, ActionMemberAdd: {}, ActionMemberRemove: {},
	ActionVersionPrune: {}, ActionSecretUpdate: {},
}

// Valid reports whether a belongs to the action vocabulary.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// Target types.
const (
	TargetArtifact = "artifact"
	TargetSpace    = "space"
	TargetUser     = "user"
)

// Target references the object an event is about. Name is stored with the
// entry so it survives the target.
type Target struct {
	Type string
	ID   string
	Name string
}

// ArtifactTarget returns the target for an artifact.
func ArtifactTarget(a *models.Artifact) *Target {
	return &Target{Type: TargetArtifact, ID: a.ID, Name: a.Name}
}

// SpaceTarget returns the target for a shared space.
func SpaceTarget(s *models.SharedSpace) *Target {
	return &Target{Type: TargetSpace, ID: s.ID, Name: s.Name}
}

// Store is the persistence the recorder needs.
type Store interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
	ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]*models.AuditEntry, error)
	Count(ctx context.Context) (int64, error)
	CountByTarget(ctx context.Context, targetID string) (int64, error)
	CountByAction(ctx context.Context) (map[string]int64, error)
}

// MaxPageLimit caps the page size of List and Timeline.
const MaxPageLimit = 500

// Page is one window of entries plus the total independent of the window.
type Page struct {
	Entries []*models.AuditEntry
	Total   int64
}

// DefaultWriteTimeout bounds a single audit write.
const DefaultWriteTimeout = 3 * time.Second

type Recorder struct {
	store   Store
	timeout time.Duration
	logger  logging.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithWriteTimeout overrides DefaultWriteTimeout. Non-positive values are ignored.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRecorder(store Store, logger logging.Logger, opts ...Option) *Recorder {
	r := &Recorder{store: store, timeout: DefaultWriteTimeout, logger: logger.With("module", "audit")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an entry. actor is empty for system actions. The returned
// entry is what was attempted; a failed write is only logged.
func (r *Recorder) Record(ctx context.Context, actor string, action Action, target *Target, detail string) *models.AuditEntry {
	e := &models.AuditEntry{
		ID:      uuid.NewString(),
		ActorID: actor,
		Action:  string(action),
		Detail:  detail,
	}
	if target != nil {
		e.TargetType = target.Type
		e.TargetID = target.ID
		e.TargetName = target.Name
	}
	if !action.Valid() {
		r.logger.Warn(ctx, "unknown audit action", "action", action)
	}

	if err := r.append(ctx, e); err != nil {
		r.logger.Error(ctx, "audit write failed",
			"error", err, "actor", actor, "action", action, "target", e.TargetID, "detail", detail)
	}
	return e
}

// append writes e detached from the caller's cancellation but never waits
// longer than r.timeout, even for a store that ignores its context.
func (r *Recorder) append(ctx context.Context, e *models.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.store.Append(ctx, e) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NormalizePage clamps pagination input: a limit outside 1..MaxPageLimit
// becomes the default, a negative offset becomes 0.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxPageLimit {
		limit = common.DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, limit, offset int) (*Page, error) {
	limit, offset = NormalizePage(limit, offset)

	entries, err := r.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Page{Entries: entries, Total: total}, nil
}

// Timeline returns the entries about one target, newest first.
func (r *Recorder) Timeline(ctx context.Context, targetID string, limit, offset int) (*Page, error) {
	limit, offset = NormalizePage(limit, offset)

	entries, err := r.store.ListByTarget(ctx, targetID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := r.store.CountByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &Page{Entries: entries, Total: total}, nil
}

// CountByAction returns the number of entries per action.
func (r *Recorder) CountByAction(ctx context.Context) (map[Action]int64, error) {
	raw, err := r.store.CountByAction(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[Action]int64, len(raw))
	for k, v := range raw {
		result[Action(k)] = v
	}
	return result, nil
}
