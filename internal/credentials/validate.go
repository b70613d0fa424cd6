package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/alarm-gateway/internal/domain/alarm"
)

// BearerScheme is the only accepted Authorization scheme.
const BearerScheme = "Bearer"

var (
	// ErrMissingAuthorization is returned when no Authorization header is sent.
	ErrMissingAuthorization = errors.New("authentication credentials were not provided")
	// ErrMalformedAuthorization is returned when the header is not "Bearer <uuid>".
	ErrMalformedAuthorization = errors.New("incorrect authentication credentials")
	// ErrMissingField is returned when a required payload field is absent.
	ErrMissingField = errors.New("missing required field")
)

// LoginPayload is the body of a login request.
// Pointers distinguish absent fields from empty strings.
type LoginPayload struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// CodePayload is the body of an arm or disarm request.
type CodePayload struct {
	Code *string `json:"code"`
}

// ValidateAuthorizationHeader extracts the bearer token from an Authorization header value.
// The token is returned exactly as received.
func ValidateAuthorizationHeader(header string) (alarm.Token, error) {
	if header == "" {
		return "", ErrMissingAuthorization
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], BearerScheme) {
		return "", ErrMalformedAuthorization
	}

	if _, err := uuid.Parse(parts[1]); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedAuthorization, err)
	}

	return alarm.Token(parts[1]), nil
}

// ValidateAccessCode returns the code from the payload.
// An empty code counts as present; its format is checked by the remote system.
func ValidateAccessCode(payload *CodePayload) (alarm.AccessCode, error) {
	if payload == nil || payload.Code == nil {
		return "", fmt.Errorf("%w: `code` is a required field", ErrMissingField)
	}

	return alarm.AccessCode(*payload.Code), nil
}

// ValidateCredentials returns the username/password pair from the payload.
func ValidateCredentials(payload *LoginPayload) (alarm.Credentials, error) {
	if payload == nil || payload.Username == nil || payload.Password == nil {
		return alarm.Credentials{}, fmt.Errorf("%w: missing username and password", ErrMissingField)
	}

	return alarm.Credentials{
		Username: *payload.Username,
		Password: *payload.Password,
	}, nil
}
