package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/smazurov/captioner/internal/updater"
	"github.com/spf13/cobra"
)

const updateTimeout = 5 * time.Minute

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd(settings SettingsFunc) *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace this binary with the latest release",
		Long: `Checks GitHub for a newer captioner release and installs it in place.
The previous binary is kept so a running server can roll back.`,
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			s := settings()
			svc, err := updater.NewService(&updater.Options{
				Repository: s.Repository,
				Prerelease: s.Prerelease,
				Restart:    func() {},
			})
			if err != nil {
				fmt.Fprintln(c.ErrOrStderr(), "error:", err)
				os.Exit(int(exitFailure))
			}

			ctx, cancel := context.WithTimeout(c.Context(), updateTimeout)
			code := runUpdate(ctx, c.OutOrStdout(), svc, checkOnly)
			cancel()
			os.Exit(int(code))
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is available")
	return cmd
}

func runUpdate(ctx context.Context, stdout io.Writer, svc updater.Service, checkOnly bool) exitCode {
	if !svc.IsEnabled() {
		fmt.Fprintln(stdout, "updates disabled:", svc.DisabledReason())
		return exitFailure
	}

	info, err := svc.CheckForUpdate(ctx)
	if err != nil {
		fmt.Fprintln(stdout, "error:", err)
		return exitFailure
	}
	if !info.UpdateAvailable {
		fmt.Fprintf(stdout, "captioner %s is up to date\n", info.CurrentVersion)
		return exitOK
	}

	fmt.Fprintf(stdout, "update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
	if checkOnly {
		return exitOK
	}

	if err := svc.ApplyUpdate(ctx); err != nil {
		fmt.Fprintln(stdout, "error:", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "installed %s\n", info.LatestVersion)
	return exitOK
}
