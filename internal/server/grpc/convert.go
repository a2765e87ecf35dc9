package grpc

import (
	"github.com/dmitrijs2005/filekeeper/internal/api"
	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

func toAPIUser(u *models.User) *api.User {
	return &api.User{ID: u.ID, Username: u.UserName, Admin: u.IsAdmin, CreatedAt: u.CreatedAt}
}

func toAPIArtifact(a *models.Artifact) *api.Artifact {
	return &api.Artifact{
		ID:         a.ID,
		ChainID:    a.ChainID,
		PreviousID: a.PreviousID,
		Version:    a.Version,
		Name:       a.Name,
		MimeType:   a.MimeType,
		Scope:      a.Scope.String(),
		Size:       a.Size,
		CreatedBy:  a.CreatedBy,
		CreatedAt:  a.CreatedAt,
	}
}

func toAPIArtifactList(list []*models.Artifact) *api.ArtifactList {
	out := &api.ArtifactList{Artifacts: make([]api.Artifact, 0, len(list))}
	for _, a := range list {
		out.Artifacts = append(out.Artifacts, *toAPIArtifact(a))
	}
	return out
}

func toAPISpace(s *models.SharedSpace) *api.Space {
	members := make(map[string]string, len(s.Members))
	for id, role := range s.Members {
		members[id] = string(role)
	}
	return &api.Space{
		ID:         s.ID,
		Name:       s.Name,
		QuotaBytes: s.QuotaBytes,
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt,
		Members:    members,
	}
}

func toAPIAuditPage(p *audit.Page) *api.AuditPage {
	out := &api.AuditPage{Total: p.Total, Entries: make([]api.AuditEntry, 0, len(p.Entries))}
	for _, e := range p.Entries {
		out.Entries = append(out.Entries, api.AuditEntry{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			TargetName: e.TargetName,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
