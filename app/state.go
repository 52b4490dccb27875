package app

// Screen is the view currently owning the keyboard.
type Screen int

const (
	ScreenStartup       Screen = iota // Bridge handshake
	ScreenAuthorization               // Sign-in through the bot
	ScreenAuthByKey                   // Sign-in with a subscription key
	ScreenHome                        // Connection widget and proxies
	ScreenSettings                    // Settings menu
	ScreenPorts                       // Port form
	ScreenConfirm                     // Yes/no dialog over the previous screen
)

func (s Screen) String() string {
	switch s {
	case ScreenStartup:
		return "startup"
	case ScreenAuthorization:
		return "authorization"
	case ScreenAuthByKey:
		return "auth_by_key"
	case ScreenHome:
		return "home"
	case ScreenSettings:
		return "settings"
	case ScreenPorts:
		return "ports"
	case ScreenConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}
