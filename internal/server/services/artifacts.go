package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/quota"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/dmitrijs2005/filekeeper/internal/syncx"
	"github.com/google/uuid"
)

// DefaultMaxVersions is the number of versions kept per file when the
// service is built with a non-positive limit.
const DefaultMaxVersions = 10

// ArtifactService owns the physical bytes of files. Every write reserves
// quota first, moves bytes second and records metadata last; a failure at
// any step undoes the earlier ones.
type ArtifactService struct {
	repos       repomanager.RepositoryManager
	blobs       storage.BlobStore
	ledger      *quota.Ledger
	audit       *audit.Recorder
	access      accessChecker
	chains      *syncx.KeyedMutex
	maxVersions int
	logger      logging.Logger
}

func NewArtifactService(repos repomanager.RepositoryManager, blobs storage.BlobStore, ledger *quota.Ledger,
	recorder *audit.Recorder, maxVersions int, logger logging.Logger) *ArtifactService {
	if maxVersions <= 0 {
		maxVersions = DefaultMaxVersions
	}
	return &ArtifactService{
		repos:       repos,
		blobs:       blobs,
		ledger:      ledger,
		audit:       recorder,
		access:      accessChecker{repos: repos},
		chains:      syncx.NewKeyedMutex(),
		maxVersions: maxVersions,
		logger:      logger.With("module", "artifacts"),
	}
}

// MaxVersions returns the number of versions retained per file.
func (s *ArtifactService) MaxVersions() int { return s.maxVersions }

// Upload stores body as version 1 of a new file in scope. size must be the
// exact length of body.
func (s *ArtifactService) Upload(ctx context.Context, actor string, scope models.Scope, name, mime string,
	body io.Reader, size int64) (*models.Artifact, error) {

	name = strings.TrimSpace(name)
	switch {
	case !scope.Valid():
		return nil, fmt.Errorf("scope %q: %w", scope, common.ErrValidation)
	case name == "":
		return nil, fmt.Errorf("name is required: %w", common.ErrValidation)
	case body == nil || size < 0:
		return nil, fmt.Errorf("body of %d bytes: %w", size, common.ErrValidation)
	}
	if err := s.access.authorize(ctx, actor, scope); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	a := &models.Artifact{
		ID:        id,
		ChainID:   id,
		Version:   1,
		Name:      name,
		MimeType:  mimeOrDefault(mime),
		Scope:     scope,
		Size:      size,
		CreatedBy: actor,
	}
	if err := s.write(ctx, a, func(key string) (int64, error) {
		return s.blobs.Put(ctx, key, body, size)
	}); err != nil {
		s.recordFailure(ctx, actor, audit.ActionUpload, a, err)
		return nil, err
	}

	s.audit.Record(ctx, actor, audit.ActionUpload, audit.ArtifactTarget(a), fmt.Sprintf("%d bytes", a.Size))
	return a, nil
}

// write reserves a.Size in a.Scope, stores the bytes under a fresh key with
// put and then persists a. put returns the number of bytes stored.
func (s *ArtifactService) write(ctx context.Context, a *models.Artifact, put func(key string) (int64, error)) error {
	hold, err := s.ledger.Hold(a.Scope, a.Size)
	if err != nil {
		return err
	}

	a.StorageKey = storage.NewKey(a.Scope)
	n, err := put(a.StorageKey)
	if err != nil {
		hold.Rollback()
		s.removeBytes(ctx, a.StorageKey)
		return storageErr("store "+a.StorageKey, err)
	}
	if n != a.Size {
		hold.Rollback()
		s.removeBytes(ctx, a.StorageKey)
		return fmt.Errorf("declared %d bytes, received %d: %w", a.Size, n, common.ErrValidation)
	}

	repo := s.repos.Artifacts(s.repos.Conn())
	if err := hold.Commit(func() error { return repo.Create(ctx, a) }); err != nil {
		hold.Rollback()
		s.removeBytes(ctx, a.StorageKey)
		return fmt.Errorf("error creating artifact: %w", err)
	}
	return nil
}

// recordFailure audits a write that reserved nothing or was rolled back.
func (s *ArtifactService) recordFailure(ctx context.Context, actor string, action audit.Action, a *models.Artifact, err error) {
	s.audit.Record(ctx, actor, action, audit.ArtifactTarget(a), "failed: "+err.Error())
}

// removeBytes deletes an object nobody references any more. Failures leave
// an orphan behind and are only logged.
func (s *ArtifactService) removeBytes(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error(ctx, "failed to remove object", "key", key, "error", err)
	}
}

// Duplicate copies the bytes of artifact id into a new, independent file in
// the same scope. An empty newName derives "<name> (copy)<ext>".
func (s *ArtifactService) Duplicate(ctx context.Context, actor, id, newName string) (*models.Artifact, error) {
	if err := requireIDs(id); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	src, err := s.repos.Artifacts(s.repos.Conn()).Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", id, err)
	}
	if err := s.access.authorize(ctx, actor, src.Scope); err != nil {
		return nil, err
	}

	unlock := s.chains.Lock(src.ChainID)
	defer unlock()

	newName = strings.TrimSpace(newName)
	if newName == "" {
		newName = copyName(src.Name)
	}
	newID := uuid.NewString()
	dup := &models.Artifact{
		ID:        newID,
		ChainID:   newID,
		Version:   1,
		Name:      newName,
		MimeType:  src.MimeType,
		Scope:     src.Scope,
		Size:      src.Size,
		CreatedBy: actor,
	}
	if err := s.write(ctx, dup, func(key string) (int64, error) {
		if err := s.blobs.Copy(ctx, src.StorageKey, key); err != nil {
			return 0, err
		}
		return src.Size, nil
	}); err != nil {
		s.recordFailure(ctx, actor, audit.ActionDuplicate, dup, err)
		return nil, err
	}

	s.audit.Record(ctx, actor, audit.ActionDuplicate, audit.ArtifactTarget(dup), "copy of "+src.ID)
	return dup, nil
}

// CreateVersion stores body as the newest version of the file artifact id
// belongs to. When the chain grows past MaxVersions the oldest versions are
// pruned: their records and quota first, their bytes second.
func (s *ArtifactService) CreateVersion(ctx context.Context, actor, id string, body io.Reader, size int64) (*models.Artifact, error) {
	if err := requireIDs(id); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	if body == nil || size < 0 {
		return nil, fmt.Errorf("body of %d bytes: %w", size, common.ErrValidation)
	}
	repo := s.repos.Artifacts(s.repos.Conn())
	cur, err := repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", id, err)
	}

	unlock := s.chains.Lock(cur.ChainID)
	defer unlock()

	chain, err := repo.ListChain(ctx, cur.ChainID)
	if err != nil {
		return nil, fmt.Errorf("error listing versions: %w", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("artifact %s: %w", id, common.ErrorNotFound)
	}
	head := chain[len(chain)-1]
	if err := s.access.authorize(ctx, actor, head.Scope); err != nil {
		return nil, err
	}

	v := &models.Artifact{
		ID:         uuid.NewString(),
		ChainID:    head.ChainID,
		PreviousID: head.ID,
		Version:    head.Version + 1,
		Name:       head.Name,
		MimeType:   head.MimeType,
		Scope:      head.Scope,
		Size:       size,
		CreatedBy:  actor,
	}
	if err := s.write(ctx, v, func(key string) (int64, error) {
		return s.blobs.Put(ctx, key, body, size)
	}); err != nil {
		s.recordFailure(ctx, actor, audit.ActionNewVersion, v, err)
		return nil, err
	}
	s.audit.Record(ctx, actor, audit.ActionNewVersion, audit.ArtifactTarget(v), fmt.Sprintf("version %d, %d bytes", v.Version, v.Size))

	s.prune(ctx, actor, append(chain, v))
	return v, nil
}

// prune pops versions off the tail of chain (oldest first) until at most
// maxVersions remain. Errors are logged; the next version retries.
func (s *ArtifactService) prune(ctx context.Context, actor string, chain []*models.Artifact) {
	repo := s.repos.Artifacts(s.repos.Conn())

	for len(chain) > s.maxVersions {
		oldest := chain[0]
		err := s.ledger.ReleaseAfter(oldest.Scope, oldest.Size, func() error {
			return repo.Delete(ctx, oldest.ID)
		})
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "version prune failed", "artifact", oldest.ID, "error", err)
			return
		}
		s.removeBytes(ctx, oldest.StorageKey)
		chain = chain[1:]

		if _, err := repo.Update(ctx, chain[0].ID, models.ArtifactPatch{ClearPrevious: true}); err != nil {
			s.logger.Error(ctx, "failed to unlink pruned version", "artifact", chain[0].ID, "error", err)
		}
		s.audit.Record(ctx, actor, audit.ActionVersionPrune, audit.ArtifactTarget(oldest),
			fmt.Sprintf("version %d, %d bytes released", oldest.Version, oldest.Size))
	}
}

// Delete removes the whole file artifact id belongs to, every version
// included. When it returns, the freed bytes are no longer counted.
func (s *ArtifactService) Delete(ctx context.Context, actor, id string) error {
	if err := requireIDs(id); err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	repo := s.repos.Artifacts(s.repos.Conn())
	a, err := repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", id, err)
	}
	if err := s.access.authorize(ctx, actor, a.Scope); err != nil {
		return err
	}

	n, freed, err := s.deleteChain(ctx, a.ChainID)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, actor, audit.ActionDelete, audit.ArtifactTarget(a),
		fmt.Sprintf("%d versions, %d bytes", n, freed))
	return nil
}

// deleteChain removes every version of chainID, newest first.
func (s *ArtifactService) deleteChain(ctx context.Context, chainID string) (int, int64, error) {
	unlock := s.chains.Lock(chainID)
	defer unlock()

	repo := s.repos.Artifacts(s.repos.Conn())
	chain, err := repo.ListChain(ctx, chainID)
	if err != nil {
		return 0, 0, fmt.Errorf("error listing versions: %w", err)
	}

	var n int
	var freed int64
	for i := len(chain) - 1; i >= 0; i-- {
		v := chain[i]
		err := s.ledger.ReleaseAfter(v.Scope, v.Size, func() error {
			return repo.Delete(ctx, v.ID)
		})
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return n, freed, fmt.Errorf("error deleting artifact %s: %w", v.ID, err)
		}
		s.removeBytes(ctx, v.StorageKey)
		n++
		freed += v.Size
	}
	return n, freed, nil
}

// PurgeScope deletes every file owned by scope without auditing each one.
// It returns the number of artifacts removed and the bytes freed.
func (s *ArtifactService) PurgeScope(ctx context.Context, scope models.Scope) (int, int64, error) {
	all, err := s.repos.Artifacts(s.repos.Conn()).ListByScope(ctx, scope)
	if err != nil {
		return 0, 0, fmt.Errorf("error listing artifacts: %w", err)
	}

	seen := make(map[string]struct{})
	var count int
	var freed int64
	for _, a := range all {
		if _, ok := seen[a.ChainID]; ok {
			continue
		}
		seen[a.ChainID] = struct{}{}

		n, b, err := s.deleteChain(ctx, a.ChainID)
		count += n
		freed += b
		if err != nil {
			return count, freed, err
		}
	}
	return count, freed, nil
}

// Get returns artifact id if actor may see it.
func (s *ArtifactService) Get(ctx context.Context, actor, id string) (*models.Artifact, error) {
	if err := requireIDs(id); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	a, err := s.repos.Artifacts(s.repos.Conn()).Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", id, err)
	}
	if err := s.access.authorize(ctx, actor, a.Scope); err != nil {
		return nil, err
	}
	return a, nil
}

// Open returns the bytes of artifact id.
func (s *ArtifactService) Open(ctx context.Context, actor, id string) (*models.Artifact, io.ReadCloser, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, a.StorageKey)
	if err != nil {
		return nil, nil, storageErr("open "+a.StorageKey, err)
	}
	return a, rc, nil
}

// Versions returns every retained version of the file artifact id belongs
// to, newest first.
func (s *ArtifactService) Versions(ctx context.Context, actor, id string) ([]*models.Artifact, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	chain, err := s.repos.Artifacts(s.repos.Conn()).ListChain(ctx, a.ChainID)
	if err != nil {
		return nil, fmt.Errorf("error listing versions: %w", err)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// List returns the newest version of every file in scope.
func (s *ArtifactService) List(ctx context.Context, actor string, scope models.Scope) ([]*models.Artifact, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("scope %q: %w", scope, common.ErrValidation)
	}
	if err := s.access.authorize(ctx, actor, scope); err != nil {
		return nil, err
	}
	all, err := s.repos.Artifacts(s.repos.Conn()).ListByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("error listing artifacts: %w", err)
	}

	// ListByScope orders by chain, then version: the last of each run is the head.
	var heads []*models.Artifact
	for i, a := range all {
		if i+1 == len(all) || all[i+1].ChainID != a.ChainID {
			heads = append(heads, a)
		}
	}
	return heads, nil
}

// Update renames artifact id or changes its mime type. Version links are
// not caller-editable.
func (s *ArtifactService) Update(ctx context.Context, actor, id string, patch models.ArtifactPatch) (*models.Artifact, error) {
	if patch.ClearPrevious {
		return nil, fmt.Errorf("version links are read-only: %w", common.ErrValidation)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", common.ErrValidation)
	}
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return a, nil
	}

	unlock := s.chains.Lock(a.ChainID)
	defer unlock()

	return s.repos.Artifacts(s.repos.Conn()).Update(ctx, id, patch)
}

func mimeOrDefault(mime string) string {
	if mime = strings.TrimSpace(mime); mime == "" {
		return "application/octet-stream"
	}
	return mime
}

// copyName turns "report.pdf" into "report (copy).pdf".
func copyName(name string) string {
	ext := path.Ext(name)
	if ext == name {
		ext = ""
	}
	return strings.TrimSuffix(name, ext) + " (copy)" + ext
}
