// Package streaming defines the text messages exchanged over a relay
// connection. Binary messages carry codec batches and are not described here.
package streaming

// Message type constants matching the relay protocol.
const (
	TypeWelcome      = "welcome"
	TypeAuthError    = "auth_error"
	TypeListSessions = "list_sessions"
	TypeSessionList  = "session_list"
	TypeError        = "error"
)

// Role is the side of the relay link a client occupies.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// Hello is the first message on every connection.
type Hello struct {
	Session       string `json:"session"`
	Role          Role   `json:"role"`
	ActivationKey string `json:"activation_key"`
}

// Control is every text message after the hello.
type Control struct {
	Type     string        `json:"type"`
	Reason   string        `json:"reason,omitempty"`
	Sessions []SessionInfo `json:"sessions,omitempty"`
}

// SessionInfo describes one session known to the hub.
type SessionInfo struct {
	Name      string `json:"name"`
	HasSender bool   `json:"has_sender"`
	Receivers int    `json:"receivers"`
}
