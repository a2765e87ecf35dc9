package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/filekeeper/internal/api"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MaxMessageSize bounds a single request or response, file bytes included.
const MaxMessageSize = 64 << 20

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	cc          grpc.ClientConnInterface

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = access, refresh
}

// accessTokenInterceptor attaches the current access token and, when the
// server reports it expired, rotates the token pair once and retries.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	accessToken, refreshToken := s.tokens()
	err := invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
	if err == nil || method == api.FullMethod(api.MethodRefresh) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if refreshToken == "" {
		return err
	}

	var pair api.TokenPair
	if err := s.cc.Invoke(ctx, api.FullMethod(api.MethodRefresh), &api.RefreshRequest{RefreshToken: refreshToken}, &pair); err != nil {
		return err
	}
	s.setTokens(pair.AccessToken, pair.RefreshToken)

	return invoker(withAccessToken(ctx, pair.AccessToken), method, req, reply, cc, opts...)
}

func NewFileKeeperClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(api.Codec{}),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.cc = conn
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	return s.mapError(s.cc.Invoke(ctx, api.FullMethod(method), req, resp))
}

// LoggedIn reports whether a token pair is held.
func (s *GRPCClient) LoggedIn() bool {
	access, _ := s.tokens()
	return access != ""
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp api.PingResponse
	if err := s.invoke(ctx, api.MethodPing, &api.Empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Login(ctx context.Context, userName, password string) error {
	var pair api.TokenPair
	if err := s.invoke(ctx, api.MethodLogin, &api.LoginRequest{Username: userName, Password: password}, &pair); err != nil {
		return err
	}
	s.setTokens(pair.AccessToken, pair.RefreshToken)
	return nil
}

// Logout revokes the refresh token on the server and forgets both tokens,
// even when the server cannot be reached. With everywhere set the server
// revokes all sessions of the user.
func (s *GRPCClient) Logout(ctx context.Context, everywhere bool) error {
	_, refresh := s.tokens()
	err := s.invoke(ctx, api.MethodLogout, &api.RefreshRequest{RefreshToken: refresh, Everywhere: everywhere}, &api.Empty{})
	s.setTokens("", "")
	return err
}

func (s *GRPCClient) Register(ctx context.Context, userName, password string, admin bool) (*api.User, error) {
	var u api.User
	if err := s.invoke(ctx, api.MethodRegister, &api.RegisterRequest{Username: userName, Password: password, Admin: admin}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GRPCClient) Upload(ctx context.Context, scope, name, mimeType string, data []byte) (*api.Artifact, error) {
	var a api.Artifact
	req := &api.UploadRequest{Scope: scope, Name: name, MimeType: mimeType, Data: data}
	if err := s.invoke(ctx, api.MethodUpload, req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GRPCClient) Download(ctx context.Context, id string) (*api.DownloadResponse, error) {
	var resp api.DownloadResponse
	if err := s.invoke(ctx, api.MethodDownload, &api.ArtifactRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) Duplicate(ctx context.Context, id, name string) (*api.Artifact, error) {
	var a api.Artifact
	if err := s.invoke(ctx, api.MethodDuplicate, &api.DuplicateRequest{ID: id, Name: name}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GRPCClient) CreateVersion(ctx context.Context, id string, data []byte) (*api.Artifact, error) {
	var a api.Artifact
	if err := s.invoke(ctx, api.MethodCreateVersion, &api.CreateVersionRequest{ID: id, Data: data}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GRPCClient) Versions(ctx context.Context, id string) ([]api.Artifact, error) {
	var list api.ArtifactList
	if err := s.invoke(ctx, api.MethodVersions, &api.ArtifactRequest{ID: id}, &list); err != nil {
		return nil, err
	}
	return list.Artifacts, nil
}

func (s *GRPCClient) Delete(ctx context.Context, id string) error {
	return s.invoke(ctx, api.MethodDelete, &api.ArtifactRequest{ID: id}, &api.Empty{})
}

func (s *GRPCClient) List(ctx context.Context, scope string) ([]api.Artifact, error) {
	var list api.ArtifactList
	if err := s.invoke(ctx, api.MethodList, &api.ListRequest{Scope: scope}, &list); err != nil {
		return nil, err
	}
	return list.Artifacts, nil
}

func (s *GRPCClient) Update(ctx context.Context, id string, name, mimeType *string) (*api.Artifact, error) {
	var a api.Artifact
	if err := s.invoke(ctx, api.MethodUpdate, &api.UpdateRequest{ID: id, Name: name, MimeType: mimeType}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GRPCClient) Quota(ctx context.Context, scope string) (*api.QuotaResponse, error) {
	var q api.QuotaResponse
	if err := s.invoke(ctx, api.MethodQuota, &api.QuotaRequest{Scope: scope}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Audit returns a page of the global log, or of one target's timeline when
// targetID is set.
func (s *GRPCClient) Audit(ctx context.Context, targetID string, limit, offset int) (*api.AuditPage, error) {
	var page api.AuditPage
	if err := s.invoke(ctx, api.MethodAudit, &api.AuditRequest{TargetID: targetID, Limit: limit, Offset: offset}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *GRPCClient) AuditCounts(ctx context.Context) (map[string]int64, error) {
	var counts api.AuditCounts
	if err := s.invoke(ctx, api.MethodAuditCounts, &api.Empty{}, &counts); err != nil {
		return nil, err
	}
	return counts.Counts, nil
}

func (s *GRPCClient) CreateSpace(ctx context.Context, name, owner string, quotaBytes int64) (*api.Space, error) {
	var sp api.Space
	if err := s.invoke(ctx, api.MethodCreateSpace, &api.CreateSpaceRequest{Name: name, Owner: owner, QuotaBytes: quotaBytes}, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *GRPCClient) AddMember(ctx context.Context, spaceID, userID, role string) error {
	return s.invoke(ctx, api.MethodAddMember, &api.MemberRequest{SpaceID: spaceID, UserID: userID, Role: role}, &api.Empty{})
}

func (s *GRPCClient) RemoveMember(ctx context.Context, spaceID, userID string) error {
	return s.invoke(ctx, api.MethodRemoveMember, &api.MemberRequest{SpaceID: spaceID, UserID: userID}, &api.Empty{})
}

func (s *GRPCClient) TransferOwnership(ctx context.Context, spaceID, userID string) error {
	return s.invoke(ctx, api.MethodTransferOwnership, &api.MemberRequest{SpaceID: spaceID, UserID: userID}, &api.Empty{})
}

func (s *GRPCClient) DeleteSpace(ctx context.Context, spaceID string) error {
	return s.invoke(ctx, api.MethodDeleteSpace, &api.SpaceRequest{SpaceID: spaceID}, &api.Empty{})
}

func (s *GRPCClient) ListSpaces(ctx context.Context) ([]api.Space, error) {
	var list api.SpaceList
	if err := s.invoke(ctx, api.MethodListSpaces, &api.Empty{}, &list); err != nil {
		return nil, err
	}
	return list.Spaces, nil
}

func (s *GRPCClient) SetTwoFactorSeed(ctx context.Context, userID string, seed []byte) error {
	return s.invoke(ctx, api.MethodSetTwoFactorSeed, &api.TwoFactorSeedRequest{UserID: userID, Seed: seed}, &api.Empty{})
}

func (s *GRPCClient) GetTwoFactorSeed(ctx context.Context, userID string) ([]byte, error) {
	var resp api.TwoFactorSeedResponse
	if err := s.invoke(ctx, api.MethodGetTwoFactorSeed, &api.TwoFactorSeedRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Seed, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var kind error
	switch st.Code() {
	case codes.Unauthenticated:
		kind = ErrUnauthorized
	case codes.PermissionDenied:
		kind = common.ErrorForbidden
	case codes.NotFound:
		kind = common.ErrorNotFound
	case codes.AlreadyExists:
		kind = common.ErrorAlreadyExists
	case codes.InvalidArgument:
		kind = common.ErrValidation
	case codes.ResourceExhausted:
		if st.Message() == common.ErrRateLimited.Error() {
			return common.ErrRateLimited
		}
		kind = common.ErrQuotaExceeded
	case codes.Unavailable:
		if st.Message() == common.ErrStorageIO.Error() {
			return common.ErrStorageIO
		}
		kind = ErrUnavailable
	case codes.DeadlineExceeded:
		kind = ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
	if st.Message() == kind.Error() {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, st.Message())
}
