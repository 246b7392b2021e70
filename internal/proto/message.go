package proto

// Frame type discriminators. The same envelope is used in both directions;
// which fields are populated depends on the type.
const (
	TypeLogin           = "login"
	TypeLoginOK         = "login_ok"
	TypeError           = "error"
	TypeGroup           = "group"
	TypePrivate         = "private"
	TypeSystem          = "system"
	TypeHistoryResponse = "history_response"
)

// History response scopes.
const (
	ScopeGroup = "group"
	ScopePM    = "pm"
)

// Frame is the envelope for every message on the wire.
type Frame struct {
	Type     string         `json:"type"`
	Username string         `json:"username,omitempty"` // login, login_ok
	Message  string         `json:"message,omitempty"`  // error
	From     string         `json:"from,omitempty"`     // group, private (server to client)
	Target   string         `json:"target,omitempty"`   // private
	Text     string         `json:"text,omitempty"`     // group, private, system
	TS       int64          `json:"ts,omitempty"`       // server to client
	Scope    string         `json:"scope,omitempty"`    // history_response
	With     string         `json:"with,omitempty"`     // history_response, pm scope only
	Messages []HistoryEntry `json:"messages,omitempty"` // history_response
}

// HistoryEntry is one persisted message as replayed to a client.
type HistoryEntry struct {
	TS     int64  `json:"ts"`
	Sender string `json:"sender"`
	Target string `json:"target,omitempty"`
	Text   string `json:"text"`
}
