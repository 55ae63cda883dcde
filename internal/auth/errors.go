package auth

import "errors"

// Token and credential failures. Callers at the HTTP edge collapse these into a
// uniform rejection; they exist so logs and tests can tell the cases apart.
var (
	ErrMissingAuthHeader   = errors.New("missing authorization header")
	ErrMalformedBearer     = errors.New("authorization header is not a bearer credential")
	ErrMalformedToken      = errors.New("malformed token")
	ErrBadSignature        = errors.New("token signature invalid")
	ErrExpired             = errors.New("token expired")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrInvalidPassword     = errors.New("password mismatch")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrCollaboratorFailure = errors.New("credential store failure")

	ErrWeakSecret           = errors.New("signing secret too short for algorithm")
	ErrInvalidTTL           = errors.New("token ttl must be at least one second")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)
