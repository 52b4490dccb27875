// Package msg defines the tea.Msg types dispatched within the duck TUI.
// It has no upstream imports (client, model) to avoid import cycles.
package msg

// -- Notices (mirrors connection.Level) --

// Level is the severity of a toast.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Notice is a user-visible message pushed from a running flow.
type Notice struct {
	Level Level
	Text  string
}

// -- Lifecycle --

// StartupResult when the bridge handshake finished.
type StartupResult struct {
	Authorized bool
	Err        error
}

// RetryStartup schedules another handshake.
type RetryStartup struct{}

// -- Actions --

// ActionResult reports a finished user action. Action names the action,
// e.g. "toggle", "mode", "select", "logout".
type ActionResult struct {
	Action string
	Err    error
}

// StateRefreshed when the controller re-read the backend.
type StateRefreshed struct {
	Err error
}

// -- Authorization --

// AuthStarted when the deep link was opened.
type AuthStarted struct {
	Token string
	Link  string
}

// AuthResult when sign-in finished, successfully or not.
type AuthResult struct {
	Err error
}

// -- Home widgets --

// IPInfo from the geo-IP endpoint.
type IPInfo struct {
	IP          string
	Country     string
	CountryCode string
	Err         error
}

// RefreshIP asks for a new IP lookup. Seq drops stale timers.
type RefreshIP struct {
	Seq int
}

// ServerMessage from the provider.
type ServerMessage struct {
	ID    string
	Title string
	Text  string
	Err   error
}

// LoadServerMessage fires once after startup.
type LoadServerMessage struct{}

// ProxiesLoaded after a proxy list refresh.
type ProxiesLoaded struct {
	Err error
}

// ForceUpdateProxies fires shortly after the home screen opens.
type ForceUpdateProxies struct{}

// ProxiesInitTimeout ends the empty-list loader.
type ProxiesInitTimeout struct{}

// ProfilesLoaded after the profile list was read.
type ProfilesLoaded struct {
	Name   string
	Expire int64 // unix seconds, 0 when unlimited
	Used   int64
	Total  int64
	Err    error
}

// TrafficSample from the core's traffic stream, in bytes/s.
type TrafficSample struct {
	Up   int64
	Down int64
}

// TrafficEnded when the traffic stream stopped.
type TrafficEnded struct {
	Err error
}

// -- UI events --

// TickMsg for periodic timer updates.
type TickMsg struct{}
