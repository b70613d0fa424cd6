package alarm

// Token is the opaque session identifier issued by the remote alarm system.
type Token string

// String returns the raw token value.
func (t Token) String() string {
	return string(t)
}

// AccessCode is the numeric secret needed to take the remote system lock.
// It is used once per request and never stored.
type AccessCode string

// Credentials identify the user logging into the remote alarm system.
type Credentials struct {
	// Username is the remote account name.
	Username string
	// Password is the remote account password.
	Password string
}

// Action is a command executed while the system lock is held.
type Action int

const (
	// ActionArm arms all alarms.
	ActionArm Action = iota + 1
	// ActionDisarm disarms all alarms.
	ActionDisarm
)

// String returns a stable lower-case name for logs and metrics.
func (a Action) String() string {
	switch a {
	case ActionArm:
		return "arm"
	case ActionDisarm:
		return "disarm"
	default:
		return "unknown"
	}
}

// State is the alarm status reported back to the caller after an action.
// It is derived from the action performed, never cached.
type State struct {
	// Armed is true after arming and false after disarming.
	Armed bool
}

// StateAfter returns the state the remote system is in once the action succeeded.
func StateAfter(action Action) State {
	return State{Armed: action == ActionArm}
}
