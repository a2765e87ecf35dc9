package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DefaultPageLimit is used when a caller passes no usable page size.
const DefaultPageLimit = 50
