package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
)

const (
	testVendor   = "acme"
	testUsername = "admin"
	testPassword = "secret"
	testCode     = "1234"
)

// fakeVendor emulates the remote alarm system: sessions, a single global lock and the armed flag.
type fakeVendor struct {
	mu sync.Mutex

	sessions map[string]bool
	holder   string
	armed    bool

	failCommands bool
	commands     int
	releases     int
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{sessions: make(map[string]bool)}
}

// start serves the vendor API over TLS and returns the server.
func (v *fakeVendor) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /"+testVendor, v.login)
	mux.HandleFunc("POST /api/panel/syncLogin", v.lock)
	mux.HandleFunc("POST /api/panel/syncLogout", v.unlock)
	mux.HandleFunc("POST /api/panel/syncSendCommand", v.command)

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func (v *fakeVendor) login(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("UserName") != testUsername || r.PostFormValue("Password") != testPassword {
		_, _ = fmt.Fprint(w, "<html><body>Login failed</body></html>")

		return
	}

	session := uuid.NewString()

	v.mu.Lock()
	v.sessions[session] = true
	v.mu.Unlock()

	_, _ = fmt.Fprintf(w, "<html><script>var sessionId = '%s';</script></html>", session)
}

// session returns the request session or writes 401.
func (v *fakeVendor) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	session := r.PostFormValue("sessionId")
	if !v.sessions[session] {
		w.WriteHeader(http.StatusUnauthorized)

		return "", false
	}

	return session, true
}

func (v *fakeVendor) lock(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	session, ok := v.session(w, r)
	if !ok {
		return
	}

	if r.PostFormValue("password") != testCode || (v.holder != "" && v.holder != session) {
		_, _ = fmt.Fprint(w, "false")

		return
	}

	v.holder = session
	_, _ = fmt.Fprint(w, "true")
}

func (v *fakeVendor) unlock(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	session, ok := v.session(w, r)
	if !ok {
		return
	}

	if v.holder == session {
		v.holder = ""
	}

	v.releases++
	_, _ = fmt.Fprint(w, "true")
}

func (v *fakeVendor) command(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	session, ok := v.session(w, r)
	if !ok {
		return
	}

	if v.holder != session {
		w.WriteHeader(http.StatusConflict)

		return
	}

	if v.failCommands {
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	v.commands++

	switch r.PostFormValue("CommandType") {
	case "1":
		v.armed = true
	case "2":
		v.armed = false
	default:
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	_, _ = fmt.Fprint(w, "true")
}

// snapshot returns the lock holder, armed flag and counters.
func (v *fakeVendor) snapshot() (holder string, armed bool, commands, releases int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.holder, v.armed, v.commands, v.releases
}

func (v *fakeVendor) setHolder(holder string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.sessions[holder] = true
	v.holder = holder
}

func (v *fakeVendor) setFailCommands(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.failCommands = fail
}
