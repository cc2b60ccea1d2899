// Package common contains shared constants and error kinds used across
// homeserver components.
package common

// AuthorizationHeaderName carries the bearer token on protected calls.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"

// TokenQueryParam carries the bearer token on the telemetry push channel,
// whose handshake cannot set custom headers.
const TokenQueryParam = "token"
