package grpc

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filekeeper/internal/api"
	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/netx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

func (s *GRPCServer) Ping(ctx context.Context, req *api.Empty) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.TokenPair, error) {
	tokens, err := s.users.Login(ctx, netx.PeerHost(ctx), req.Username, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodLogin, err)
	}
	return &api.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.TokenPair, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodRefresh, err)
	}
	return &api.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.RefreshRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.Logout(ctx, userID, req.RefreshToken, req.Everywhere); err != nil {
		return nil, s.toStatus(ctx, api.MethodLogout, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.User, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Register(ctx, userID, req.Username, req.Password, req.Admin)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodRegister, err)
	}
	s.logger.Info(ctx, "Registered", "username", user.UserName, "id", user.ID)
	return toAPIUser(user), nil
}

// scopeOrPersonal parses raw; an empty scope means the caller's own.
func scopeOrPersonal(raw, userID string) (models.Scope, error) {
	if raw == "" {
		return models.PersonalScope(userID), nil
	}
	scope, ok := models.ParseScope(raw)
	if !ok {
		return models.Scope{}, fmt.Errorf("scope %q: %w", raw, common.ErrValidation)
	}
	return scope, nil
}

func (s *GRPCServer) Upload(ctx context.Context, req *api.UploadRequest) (*api.Artifact, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := scopeOrPersonal(req.Scope, userID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodUpload, err)
	}
	a, err := s.artifacts.Upload(ctx, userID, scope, req.Name, req.MimeType, bytes.NewReader(req.Data), int64(len(req.Data)))
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodUpload, err)
	}
	return toAPIArtifact(a), nil
}

func (s *GRPCServer) Download(ctx context.Context, req *api.ArtifactRequest) (*api.DownloadResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	a, rc, err := s.artifacts.Open(ctx, userID, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodDownload, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, a.Size))
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodDownload, fmt.Errorf("read %s: %w: %w", a.ID, common.ErrStorageIO, err))
	}
	return &api.DownloadResponse{Artifact: *toAPIArtifact(a), Data: data}, nil
}

func (s *GRPCServer) Duplicate(ctx context.Context, req *api.DuplicateRequest) (*api.Artifact, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.artifacts.Duplicate(ctx, userID, req.ID, req.Name)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodDuplicate, err)
	}
	return toAPIArtifact(a), nil
}

func (s *GRPCServer) CreateVersion(ctx context.Context, req *api.CreateVersionRequest) (*api.Artifact, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.artifacts.CreateVersion(ctx, userID, req.ID, bytes.NewReader(req.Data), int64(len(req.Data)))
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodCreateVersion, err)
	}
	return toAPIArtifact(a), nil
}

func (s *GRPCServer) Versions(ctx context.Context, req *api.ArtifactRequest) (*api.ArtifactList, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.artifacts.Versions(ctx, userID, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodVersions, err)
	}
	return toAPIArtifactList(list), nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *api.ArtifactRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.artifacts.Delete(ctx, userID, req.ID); err != nil {
		return nil, s.toStatus(ctx, api.MethodDelete, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) List(ctx context.Context, req *api.ListRequest) (*api.ArtifactList, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := scopeOrPersonal(req.Scope, userID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodList, err)
	}
	list, err := s.artifacts.List(ctx, userID, scope)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodList, err)
	}
	return toAPIArtifactList(list), nil
}

func (s *GRPCServer) Update(ctx context.Context, req *api.UpdateRequest) (*api.Artifact, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.artifacts.Update(ctx, userID, req.ID, models.ArtifactPatch{Name: req.Name, MimeType: req.MimeType})
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodUpdate, err)
	}
	return toAPIArtifact(a), nil
}

func (s *GRPCServer) Quota(ctx context.Context, req *api.QuotaRequest) (*api.QuotaResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := scopeOrPersonal(req.Scope, userID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodQuota, err)
	}
	st, err := s.spaces.Quota(ctx, userID, scope)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodQuota, err)
	}
	return &api.QuotaResponse{UsedBytes: st.UsedBytes, CeilingBytes: st.CeilingBytes}, nil
}

func (s *GRPCServer) Audit(ctx context.Context, req *api.AuditRequest) (*api.AuditPage, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var page *audit.Page
	if req.TargetID != "" {
		page, err = s.audit.Timeline(ctx, userID, req.TargetID, req.Limit, req.Offset)
	} else {
		page, err = s.audit.List(ctx, userID, req.Limit, req.Offset)
	}
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodAudit, err)
	}
	return toAPIAuditPage(page), nil
}

func (s *GRPCServer) AuditCounts(ctx context.Context, req *api.Empty) (*api.AuditCounts, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.audit.CountByAction(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodAuditCounts, err)
	}
	out := make(map[string]int64, len(counts))
	for action, n := range counts {
		out[string(action)] = n
	}
	return &api.AuditCounts{Counts: out}, nil
}

func (s *GRPCServer) CreateSpace(ctx context.Context, req *api.CreateSpaceRequest) (*api.Space, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	space, err := s.spaces.CreateSpace(ctx, userID, req.Name, req.Owner, req.QuotaBytes)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodCreateSpace, err)
	}
	return toAPISpace(space), nil
}

func (s *GRPCServer) AddMember(ctx context.Context, req *api.MemberRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleMember
	}
	if err := s.spaces.AddMember(ctx, userID, req.SpaceID, req.UserID, role); err != nil {
		return nil, s.toStatus(ctx, api.MethodAddMember, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) RemoveMember(ctx context.Context, req *api.MemberRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.spaces.RemoveMember(ctx, userID, req.SpaceID, req.UserID); err != nil {
		return nil, s.toStatus(ctx, api.MethodRemoveMember, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) TransferOwnership(ctx context.Context, req *api.MemberRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.spaces.TransferOwnership(ctx, userID, req.SpaceID, req.UserID); err != nil {
		return nil, s.toStatus(ctx, api.MethodTransferOwnership, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) DeleteSpace(ctx context.Context, req *api.SpaceRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.spaces.DeleteSpace(ctx, userID, req.SpaceID); err != nil {
		return nil, s.toStatus(ctx, api.MethodDeleteSpace, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) ListSpaces(ctx context.Context, req *api.Empty) (*api.SpaceList, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.spaces.ListSpacesFor(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodListSpaces, err)
	}
	out := &api.SpaceList{Spaces: make([]api.Space, 0, len(list))}
	for _, sp := range list {
		out.Spaces = append(out.Spaces, *toAPISpace(sp))
	}
	return out, nil
}

func (s *GRPCServer) SetTwoFactorSeed(ctx context.Context, req *api.TwoFactorSeedRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	target := req.UserID
	if target == "" {
		target = userID
	}
	if err := s.users.SetTwoFactorSeed(ctx, userID, target, req.Seed); err != nil {
		return nil, s.toStatus(ctx, api.MethodSetTwoFactorSeed, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) GetTwoFactorSeed(ctx context.Context, req *api.TwoFactorSeedRequest) (*api.TwoFactorSeedResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	target := req.UserID
	if target == "" {
		target = userID
	}
	seed, err := s.users.TwoFactorSeed(ctx, userID, target)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodGetTwoFactorSeed, err)
	}
	return &api.TwoFactorSeedResponse{Seed: seed}, nil
}
