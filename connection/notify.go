package connection

// Level is the severity of a user-visible notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier shows short messages to the user. The TUI turns them into toasts
// and the headless commands print them to stderr.
type Notifier interface {
	Notify(level Level, text string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, text string)

func (f NotifierFunc) Notify(level Level, text string) { f(level, text) }

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(Level, string) {})
