package alarms

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/alarm-gateway/internal/domain/alarm"
	"github.com/oshokin/alarm-gateway/internal/logger"
	"github.com/oshokin/alarm-gateway/internal/metrics"
)

// errUnknownAction is returned for an Action the service cannot execute.
var errUnknownAction = errors.New("unknown alarm action")

// Service implements login and the locked arm/disarm flow.
// It keeps no state between requests.
type Service struct {
	// remote opens sessions against the alarm system.
	remote Remote
	// metrics records outcomes; nil disables recording.
	metrics *metrics.Registry
}

// Option configures the service.
type Option func(*Service)

// WithMetrics records login and lock outcomes in the registry.
func WithMetrics(registry *metrics.Registry) Option {
	return func(s *Service) {
		s.metrics = registry
	}
}

// NewService creates a service on top of the remote alarm system.
func NewService(remote Remote, opts ...Option) *Service {
	s := &Service{
		remote: remote,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Login exchanges credentials for a session token.
func (s *Service) Login(ctx context.Context, credentials alarm.Credentials) (alarm.Token, error) {
	token, err := s.remote.Authenticate(ctx, credentials)
	if err != nil {
		err = classify(err)

		if errors.Is(err, alarm.ErrPermissionDenied) {
			s.metrics.ObserveLogin(metrics.LoginDenied)
			logger.InfoKV(ctx, "Login rejected by the alarm system", "username", credentials.Username)
		} else {
			s.metrics.ObserveLogin(metrics.LoginUnavailable)
			logger.ErrorKV(ctx, "Alarm system unavailable during login", "error", err)
		}

		return "", fmt.Errorf("authenticate: %w", err)
	}

	s.metrics.ObserveLogin(metrics.LoginSucceeded)

	return token, nil
}

// Arm arms all alarms while holding the system lock.
func (s *Service) Arm(ctx context.Context, token alarm.Token, code alarm.AccessCode) (alarm.State, error) {
	return s.Run(ctx, token, code, alarm.ActionArm)
}

// Disarm disarms all alarms while holding the system lock.
func (s *Service) Disarm(ctx context.Context, token alarm.Token, code alarm.AccessCode) (alarm.State, error) {
	return s.Run(ctx, token, code, alarm.ActionDisarm)
}

// Run executes the action inside the system lock and reports the resulting state.
func (s *Service) Run(
	ctx context.Context,
	token alarm.Token,
	code alarm.AccessCode,
	action alarm.Action,
) (alarm.State, error) {
	var do func(ctx context.Context, session Session) error

	switch action {
	case alarm.ActionArm:
		do = func(ctx context.Context, session Session) error { return session.Arm(ctx) }
	case alarm.ActionDisarm:
		do = func(ctx context.Context, session Session) error { return session.Disarm(ctx) }
	default:
		// Not a remote failure: reported as is and the lock is never taken.
		return alarm.State{}, fmt.Errorf("%w: %d", errUnknownAction, action)
	}

	err := s.WithSystemLock(ctx, token, code, func(ctx context.Context, session Session) error {
		actionErr := do(ctx, session)
		s.metrics.ObserveAction(action.String(), actionErr)

		return actionErr
	})
	if err != nil {
		return alarm.State{}, err
	}

	logger.InfoKV(ctx, "Alarm action completed", "action", action.String())

	return alarm.StateAfter(action), nil
}

// WithSystemLock binds the token, takes the global system lock with code and
// runs fn while it is held. The lock is released on every exit path,
// including a panic in fn.
//
// The critical section ignores cancellation of ctx: once a client has asked
// for the lock, acquisition and release still go through if it disconnects.
// Each remote call stays bounded by the remote client's own timeout.
func (s *Service) WithSystemLock(
	ctx context.Context,
	token alarm.Token,
	code alarm.AccessCode,
	fn func(ctx context.Context, session Session) error,
) error {
	ctx = context.WithoutCancel(ctx)

	session, err := s.remote.Bind(token)
	if err != nil {
		return fmt.Errorf("bind session: %w", classify(err))
	}

	lock, err := session.Lock(ctx, code)
	if err != nil {
		err = classify(err)

		if errors.Is(err, alarm.ErrPermissionDenied) {
			s.metrics.ObserveLock(metrics.LockDenied)
			logger.InfoKV(ctx, "System lock denied, bearer token is invalid or expired")
		} else {
			// The remote side may still hold the lock until it times out on its own.
			s.metrics.ObserveLock(metrics.LockUnavailable)
			logger.ErrorKV(ctx, "Alarm system unavailable while taking the system lock", "error", err)
		}

		return fmt.Errorf("acquire system lock: %w", err)
	}

	s.metrics.ObserveLock(metrics.LockAcquired)
	logger.DebugKV(ctx, "System lock acquired")

	defer func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			s.metrics.ObserveReleaseFailure()
			logger.WarnKV(ctx, "Failed to release the system lock", "error", releaseErr)

			return
		}

		logger.DebugKV(ctx, "System lock released")
	}()

	if err := fn(ctx, session); err != nil {
		err = classify(err)

		if !errors.Is(err, alarm.ErrPermissionDenied) {
			logger.ErrorKV(ctx, "Alarm system failed while holding the system lock", "error", err)
		}

		return fmt.Errorf("locked action: %w", err)
	}

	return nil
}

// classify makes sure err carries one of the two remote error kinds.
func classify(err error) error {
	if errors.Is(err, alarm.ErrPermissionDenied) || errors.Is(err, alarm.ErrServiceUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %w", alarm.ErrServiceUnavailable, err)
}
