// Package cli holds the duck command tree. Without a subcommand it runs the
// TUI; the subcommands drive the same controller headlessly.
package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spy-duck/duck-tui/app"
	"github.com/spy-duck/duck-tui/config"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/logging"
	"github.com/spy-duck/duck-tui/markdown"
)

var (
	profileFlag string
	bridgeFlag  string
	noColor     bool
	verbose     bool

	version = "dev"

	svc     *app.Services
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "duck",
	Short:         "Terminal client for Duck VPN",
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd == cmd.Root())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&profileFlag, "profile", "", "named profile for state isolation (~/.duck/profiles/<name>)")
	f.StringVar(&bridgeFlag, "bridge", "", "backend bridge URL (http://, unix:// or npipe://)")
	f.BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// Execute runs the command tree. v is the build version.
func Execute(v string) error {
	version = v
	rootCmd.Version = v
	return rootCmd.Execute()
}

// setup loads the profile's config and wires the services. The TUI logs
// to a file; headless commands log to stderr.
func setup(interactive bool) error {
	profile := profileFlag
	if profile == "" {
		profile = os.Getenv(config.EnvProfile)
	}
	dir := config.ProfileDir(profile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	cfg, cfgErr := config.Load(dir)
	if bridgeFlag != "" {
		cfg.BridgeURL = bridgeFlag
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	var log *logrus.Logger
	if interactive {
		l, closer, err := logging.Setup(dir, level)
		if err != nil {
			return err
		}
		log, logFile = l, closer
	} else {
		if !verbose {
			level = "warn"
		}
		log = logging.New(os.Stderr, level)
	}
	if cfgErr != nil {
		log.WithError(cfgErr).Warn("config ignored, using defaults")
	}
	log.WithFields(logrus.Fields{"profile": profile, "bridge": cfg.BridgeURL, "version": version}).Info("starting")

	s, err := app.Wire(cfg, dir, log)
	if err != nil {
		return err
	}
	if !interactive {
		s.SetNotifier(stderrNotifier(os.Stderr))
	}
	svc = s
	return nil
}

func runTUI() error {
	if !app.ApplyTheme(svc.Config.Theme) {
		if lipgloss.HasDarkBackground() {
			app.ApplyTheme("dark")
		} else {
			app.ApplyTheme("light")
		}
	}
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
		markdown.SetStyle("notty")
	}

	m := app.New(svc, version)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		p.Send(app.ProgramReady{Program: p})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("duck: %w", err)
	}
	return nil
}

// stderrNotifier prints notices for headless commands.
func stderrNotifier(w io.Writer) connection.Notifier {
	return connection.NotifierFunc(func(level connection.Level, text string) {
		fmt.Fprintf(w, "%s: %s\n", level, text)
	})
}
