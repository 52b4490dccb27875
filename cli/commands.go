package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/traffic"
)

const expireFormat = "02.01.2006 15:04"

// commandContext is cancelled by Ctrl+C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection state, mode, proxy and subscription",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := svc.Controller.Refresh(ctx); err != nil {
			return err
		}
		if _, err := svc.Selector.Refresh(ctx); err != nil {
			svc.Log.WithError(err).Warn("read proxies")
		}
		profiles, err := svc.Client.Profiles(ctx)
		if err != nil {
			svc.Log.WithError(err).Warn("read profiles")
		}
		printStatus(cmd.OutOrStdout(), svc.Controller.Snapshot(), svc.Selector.Selected(), profiles)
		return nil
	},
}

func printStatus(w io.Writer, snap connection.Snapshot, sel connection.Selection, profiles client.Profiles) {
	row := func(k, v string) { fmt.Fprintf(w, "%-13s %s\n", k+":", v) }
	row("State", string(snap.State))
	row("Mode", string(snap.Mode))
	service := "not installed"
	if snap.ServiceAvailable {
		service = "installed"
	}
	if snap.RunningMode != "" {
		service += " (core: " + string(snap.RunningMode) + ")"
	}
	row("Service", service)
	if sel.Group != "" {
		row("Proxy", sel.Group+" / "+sel.Proxy)
	}
	p, ok := profiles.CurrentProfile()
	if !ok {
		row("Subscription", "none")
		return
	}
	sub := p.Name
	if p.Extra != nil {
		if p.Extra.Expire > 0 {
			exp := time.Unix(p.Extra.Expire, 0)
			sub += ", expires " + exp.Format(expireFormat)
			if exp.Before(time.Now()) {
				sub += " (expired)"
			}
		}
		if p.Extra.Total > 0 {
			sub += ", " + traffic.Format(p.Extra.Upload+p.Extra.Download, 1) + "/" + traffic.Format(p.Extra.Total, 1)
		}
	}
	row("Subscription", sub)
}

// intent runs one controller action after reading the current state.
func intent(fn func(c *connection.Controller, ctx context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := svc.Controller.Refresh(ctx); err != nil {
			return err
		}
		if err := fn(svc.Controller, ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), svc.Controller.Snapshot().State)
		return nil
	}
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect in the current mode",
	Args:  cobra.NoArgs,
	RunE:  intent((*connection.Controller).Connect),
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Turn the system proxy and the virtual adapter off",
	Args:  cobra.NoArgs,
	RunE:  intent((*connection.Controller).Disconnect),
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Connect when disconnected, disconnect otherwise",
	Args:  cobra.NoArgs,
	RunE:  intent((*connection.Controller).Toggle),
}

var modeCmd = &cobra.Command{
	Use:       "mode [system|tun|combine]",
	Short:     "Show or change the connection mode",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(client.ModeSystem), string(client.ModeTun), string(client.ModeCombine)},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := svc.Controller.Refresh(ctx); err != nil {
			return err
		}
		if len(args) == 1 {
			mode, err := client.ParseMode(args[0])
			if err != nil {
				return err
			}
			if err := svc.Controller.ChangeMode(ctx, mode); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), svc.Controller.Snapshot().Mode)
		return nil
	},
}

var proxyCmd = &cobra.Command{
	Use:   "proxy [group name]",
	Short: "List proxies or select one",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or <group> <name>, got %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		groups, err := svc.Selector.Refresh(ctx)
		if err != nil {
			return err
		}
		if len(args) == 2 {
			return svc.Selector.Select(ctx, args[0], args[1])
		}
		printProxies(cmd.OutOrStdout(), groups, svc.Selector.Selected())
		return nil
	},
}

func printProxies(w io.Writer, groups []client.ProxyGroup, sel connection.Selection) {
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%s)\n", g.Name, strings.ToLower(g.Type))
		for _, p := range g.All {
			mark := " "
			if (sel.Group == g.Name && sel.Proxy == p.Name) || (sel.Group != g.Name && g.Now == p.Name) {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, p.Name)
		}
	}
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the privileged helper service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the service and restart the core under it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if _, err := svc.Service.Install(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "service installed")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return svc.Settings.UninstallService(ctx)
	},
}

var coreCmd = &cobra.Command{
	Use:   "core",
	Short: "Control the proxy core",
}

var coreRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the proxy core",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return svc.Settings.RestartCore(ctx)
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd, serviceUninstallCmd)
	coreCmd.AddCommand(coreRestartCmd)
	rootCmd.AddCommand(statusCmd, connectCmd, disconnectCmd, toggleCmd, modeCmd, proxyCmd, serviceCmd, coreCmd)
}
