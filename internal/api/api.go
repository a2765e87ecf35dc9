// Package api defines the wire contract between the FileKeeper server and its
// clients: the gRPC service and method names, request and response messages,
// and the JSON codec that carries them.
package api

import "time"

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "filekeeper.FileKeeper"

// Method names, as registered in the service descriptor.
const (
	MethodPing              = "Ping"
	MethodLogin             = "Login"
	MethodRefresh           = "Refresh"
	MethodLogout            = "Logout"
	MethodRegister          = "Register"
	MethodUpload            = "Upload"
	MethodDownload          = "Download"
	MethodDuplicate         = "Duplicate"
	MethodCreateVersion     = "CreateVersion"
	MethodVersions          = "Versions"
	MethodDelete            = "Delete"
	MethodList              = "List"
	MethodUpdate            = "Update"
	MethodQuota             = "Quota"
	MethodAudit             = "Audit"
	MethodAuditCounts       = "AuditCounts"
	MethodCreateSpace       = "CreateSpace"
	MethodAddMember         = "AddMember"
	MethodRemoveMember      = "RemoveMember"
	MethodTransferOwnership = "TransferOwnership"
	MethodDeleteSpace       = "DeleteSpace"
	MethodListSpaces        = "ListSpaces"
	MethodSetTwoFactorSeed  = "SetTwoFactorSeed"
	MethodGetTwoFactorSeed  = "GetTwoFactorSeed"
)

// FullMethod returns "/filekeeper.FileKeeper/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshRequest is used by both Refresh and Logout. Everywhere is only
// read by Logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Everywhere   bool   `json:"everywhere,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Artifact is one stored version of a file. Scope is "user/<id>" or
// "space/<id>".
type Artifact struct {
	ID         string    `json:"id"`
	ChainID    string    `json:"chain_id"`
	PreviousID string    `json:"previous_id,omitempty"`
	Version    int       `json:"version"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	Scope      string    `json:"scope"`
	Size       int64     `json:"size"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type UploadRequest struct {
	Scope    string `json:"scope"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type ArtifactRequest struct {
	ID string `json:"id"`
}

type DownloadResponse struct {
	Artifact Artifact `json:"artifact"`
	Data     []byte   `json:"data"`
}

type DuplicateRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type CreateVersionRequest struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

type ListRequest struct {
	Scope string `json:"scope"`
}

type ArtifactList struct {
	Artifacts []Artifact `json:"artifacts"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	ID       string  `json:"id"`
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mime_type,omitempty"`
}

type QuotaRequest struct {
	Scope string `json:"scope"`
}

type QuotaResponse struct {
	UsedBytes    int64 `json:"used_bytes"`
	CeilingBytes int64 `json:"ceiling_bytes"`
}

// AuditRequest selects the global log, or one target's timeline when
// TargetID is set.
type AuditRequest struct {
	TargetID string `json:"target_id,omitempty"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

type AuditEntry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	TargetName string    `json:"target_name,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditPage struct {
	Entries []AuditEntry `json:"entries"`
	Total   int64        `json:"total"`
}

type AuditCounts struct {
	Counts map[string]int64 `json:"counts"`
}

type CreateSpaceRequest struct {
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	QuotaBytes int64  `json:"quota_bytes"`
}

type Space struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	QuotaBytes int64             `json:"quota_bytes"`
	CreatedBy  string            `json:"created_by"`
	CreatedAt  time.Time         `json:"created_at"`
	Members    map[string]string `json:"members"`
}

type SpaceRequest struct {
	SpaceID string `json:"space_id"`
}

// MemberRequest is used by AddMember, RemoveMember and TransferOwnership.
// Role is only read by AddMember.
type MemberRequest struct {
	SpaceID string `json:"space_id"`
	UserID  string `json:"user_id"`
	Role    string `json:"role,omitempty"`
}

type SpaceList struct {
	Spaces []Space `json:"spaces"`
}

// TwoFactorSeedRequest addresses the caller when UserID is empty.
type TwoFactorSeedRequest struct {
	UserID string `json:"user_id,omitempty"`
	Seed   []byte `json:"seed,omitempty"`
}

type TwoFactorSeedResponse struct {
	Seed []byte `json:"seed"`
}
