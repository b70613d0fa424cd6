package alarm

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/oshokin/alarm-gateway/internal/credentials"
	domain "github.com/oshokin/alarm-gateway/internal/domain/alarm"
)

// maxRequestBody caps the size of accepted request bodies.
const maxRequestBody = 64 << 10

// loginResponse is the body of a successful login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// alarmsResponse is the body of a successful arm or disarm.
type alarmsResponse struct {
	AlarmsArmed bool `json:"alarms_armed"`
}

// handleLogin authenticates the user and returns an access token.
//
// Request: {"username": "str", "password": "str"}.
// Responds 400 on missing fields, 403 on wrong credentials and 503 when the
// alarm system fails.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var payload credentials.LoginPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		return err
	}

	creds, err := credentials.ValidateCredentials(&payload)
	if err != nil {
		return httpError{Status: http.StatusBadRequest, Code: codeBadRequest, Detail: "Missing username and password"}
	}

	token, err := s.service.Login(r.Context(), creds)

	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return httpError{Status: http.StatusForbidden, Code: codeForbidden, Detail: "Wrong username or password"}
	case errors.Is(err, domain.ErrServiceUnavailable):
		return errServiceUnavailable
	case err != nil:
		return err
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token.String()})

	return nil
}

// handleAlarms returns the handler arming or disarming all alarms under the
// system lock. The bearer token comes from requireBearer.
//
// Request: {"code": "str"}.
// Responds 400 on a missing code, 401 when the token is refused by the alarm
// system and 503 when the alarm system fails.
func (s *Server) handleAlarms(action domain.Action) handlerFunc {
	run := s.service.Arm
	if action == domain.ActionDisarm {
		run = s.service.Disarm
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		token, ok := tokenFromContext(r.Context())
		if !ok {
			return httpError{Status: http.StatusUnauthorized, Code: codeUnauthorized, Detail: "Authentication credentials were not provided"}
		}

		var payload credentials.CodePayload
		if err := decodeJSON(w, r, &payload); err != nil {
			return err
		}

		code, err := credentials.ValidateAccessCode(&payload)
		if err != nil {
			return httpError{Status: http.StatusBadRequest, Code: codeBadRequest, Detail: "`code` is a required field"}
		}

		state, err := run(r.Context(), token, code)

		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			return httpError{Status: http.StatusUnauthorized, Code: codeUnauthorized, Detail: "The bearer token is invalid or expired"}
		case errors.Is(err, domain.ErrServiceUnavailable):
			return errServiceUnavailable
		case err != nil:
			return err
		}

		writeJSON(w, http.StatusOK, alarmsResponse{AlarmsArmed: state.Armed})

		return nil
	}
}

// errServiceUnavailable is returned for every remote fault. Details stay in the logs.
//
//nolint:gochecknoglobals // Immutable response template.
var errServiceUnavailable = httpError{
	Status: http.StatusServiceUnavailable,
	Code:   codeServiceUnavailable,
	Detail: "The alarm system is unavailable, try again later",
}

// decodeJSON reads the request body into dst. An empty body decodes as {}.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		return httpError{Status: http.StatusBadRequest, Code: codeInvalidJSON, Detail: "Could not parse the JSON request body"}
	}

	return nil
}
