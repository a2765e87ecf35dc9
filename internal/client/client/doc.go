// Package client is the FileKeeper API client used by the CLI.
//
// # Overview
//
// GRPCClient manages one connection to the server, speaks the JSON codec of
// package api, injects the access token via an interceptor and transparently
// refreshes it once when the server reports it expired.
//
// # Error Handling
//
// gRPC status codes are mapped back to sentinel errors that callers can match
// with errors.Is: ErrUnavailable and ErrUnauthorized from this package, and
// the common package errors for everything the server reports by kind
// (not found, forbidden, quota exceeded, rate limited, validation).
package client
