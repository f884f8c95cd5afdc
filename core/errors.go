package core

import (
	"errors"
	"fmt"
)

// Validation errors (client input)
var (
	ErrEmailRequired    = errors.New("email is required")                                 // 400
	ErrInvalidEmail     = errors.New("invalid email format")                              // 400
	ErrNicknameRequired = errors.New("nickname is required")                              // 400
	ErrPasswordRequired = errors.New("password is required")                              // 400
	ErrPasswordTooShort = errors.New("password is too short")                             // 400
	ErrPasswordTooLong  = errors.New("password is too long")                              // 400
	ErrPasswordTooWeak  = errors.New("password must contain both letters and digits")    // 400
	ErrUnknownProvider  = errors.New("unknown oauth provider")                            // 400
)

// Not-found errors
var (
	ErrMemberNotFound  = errors.New("member not found")  // 404
	ErrSessionNotFound = errors.New("session not found") // 401
	ErrAPIKeyNotFound  = errors.New("api key not found") // 404
)

// Conflict errors
var (
	ErrMemberExists             = errors.New("member already exists")                      // 409
	ErrProviderAlreadyConnected = errors.New("provider is already connected")              // 409
	ErrProviderNotConnected     = errors.New("provider is not connected")                  // 409
	ErrPasswordAlreadySet       = errors.New("password is already set")                    // 409
	ErrPasswordNotSet           = errors.New("no password set for this member")            // 409
	ErrOAuthIdentityExists      = errors.New("oauth identity belongs to another member")   // 409
	ErrAlreadyLinked            = errors.New("provider account linked to another member")  // 409
	ErrSessionTokenExists       = errors.New("session token collision")                    // retried internally
	ErrConcurrentModification   = errors.New("member was modified by a concurrent update") // 409
)

// Unauthorized errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")                                // 401
	ErrInvalidToken       = errors.New("invalid or expired token")                                 // 401
	ErrSessionExpired     = errors.New("session expired")                                          // 401
	ErrMissingAuthHeader  = errors.New("missing authorization header")                             // 401
	ErrInvalidAuthHeader  = errors.New("invalid authorization format, expected 'Bearer <token>'") // 401
)

// Policy violations
var (
	ErrLastLoginMethod      = errors.New("cannot disconnect the only remaining login method") // 409
	ErrResendCooldown       = errors.New("a token was issued too recently")                   // 429
	ErrEmailAlreadyVerified = errors.New("email is already verified")                         // 409
)

// Config errors (server-side configuration)
var (
	ErrStorageRequired = errors.New("storage adapter is required") // 500
	ErrCacheNotFound   = errors.New("session not found in cache")
)

// CooldownError carries how long the caller must wait before requesting
// another token. Matches ErrResendCooldown through errors.Is.
type CooldownError struct {
	RemainingSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("a token was issued too recently, retry in %ds", e.RemainingSeconds)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrResendCooldown
}
