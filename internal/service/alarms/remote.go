package alarms

import (
	"context"

	"github.com/oshokin/alarm-gateway/internal/domain/alarm"
	"github.com/oshokin/alarm-gateway/internal/elmo"
)

// Remote creates sessions against the remote alarm system.
// Errors wrap alarm.ErrPermissionDenied or alarm.ErrServiceUnavailable.
type Remote interface {
	// Authenticate exchanges credentials for a session token.
	Authenticate(ctx context.Context, credentials alarm.Credentials) (alarm.Token, error)
	// Bind attaches an existing token to a new session without a network call.
	Bind(token alarm.Token) (Session, error)
}

// Session is one authenticated session against the remote alarm system.
type Session interface {
	// Lock takes the global system lock with the access code.
	Lock(ctx context.Context, code alarm.AccessCode) (Lock, error)
	// Arm arms all alarms. Only valid while the lock is held.
	Arm(ctx context.Context) error
	// Disarm disarms all alarms. Only valid while the lock is held.
	Disarm(ctx context.Context) error
}

// Lock is a held global system lock.
type Lock interface {
	// Release gives the lock back. Only the first call has an effect.
	Release(ctx context.Context) error
}

// elmoRemote builds a fresh elmo.Client for every call.
type elmoRemote struct {
	// baseURL is the vendor API root.
	baseURL string
	// vendor is the vendor identifier.
	vendor string
	// options are applied to every client.
	options []elmo.Option
}

// NewElmoRemote returns a Remote backed by the Elmo web API.
//
//nolint:ireturn // Callers depend on the Remote abstraction.
func NewElmoRemote(baseURL, vendor string, options ...elmo.Option) Remote {
	return &elmoRemote{
		baseURL: baseURL,
		vendor:  vendor,
		options: options,
	}
}

// Authenticate logs in with a new client.
func (r *elmoRemote) Authenticate(ctx context.Context, credentials alarm.Credentials) (alarm.Token, error) {
	client, err := elmo.New(r.baseURL, r.vendor, r.options...)
	if err != nil {
		return "", err
	}

	return client.Auth(ctx, credentials.Username, credentials.Password)
}

// Bind creates a client bound to the token.
//
//nolint:ireturn // Session hides the concrete client.
func (r *elmoRemote) Bind(token alarm.Token) (Session, error) {
	options := append([]elmo.Option{elmo.WithSession(token)}, r.options...)

	client, err := elmo.New(r.baseURL, r.vendor, options...)
	if err != nil {
		return nil, err
	}

	return &elmoSession{client: client}, nil
}

// elmoSession adapts *elmo.Client to Session.
type elmoSession struct {
	client *elmo.Client
}

// Lock takes the system lock.
//
//nolint:ireturn // Lock hides the concrete handle.
func (s *elmoSession) Lock(ctx context.Context, code alarm.AccessCode) (Lock, error) {
	lock, err := s.client.Lock(ctx, code)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// Arm arms all alarms.
func (s *elmoSession) Arm(ctx context.Context) error {
	return s.client.Arm(ctx)
}

// Disarm disarms all alarms.
func (s *elmoSession) Disarm(ctx context.Context) error {
	return s.client.Disarm(ctx)
}
