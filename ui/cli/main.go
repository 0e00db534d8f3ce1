// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, configuration loading and the version
// subcommand. The backup, restore and operations commands live in their own
// files.

package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/riskledger/riskledger/buildvars"
	"github.com/riskledger/riskledger/internal/config"
	"github.com/riskledger/riskledger/internal/db"
	"github.com/riskledger/riskledger/internal/logging"
	"github.com/spf13/cobra"
)

var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

// appConfig is filled by the root command's PersistentPreRunE.
var appConfig config.Config

// flagBindings maps config keys to the persistent flags that override them.
var flagBindings = map[string]string{
	"database.type":      "database.type",
	"database.dsn":       "database.dsn",
	"backup.dir":         "backup.dir",
	"backup.compression": "backup.compression",
	"log_level":          "log-level",
}

// loadConfig reads configuration for cmd and applies the log level.
func loadConfig(cmd *cobra.Command) error {
	path, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}
	appConfig, err = config.LoadConfig[config.Config](cmd, config.Defaults(), path, flagBindings)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := logging.SetLevel(appConfig.LogLevel); err != nil {
		logging.Warnf("%v", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logging.SetDebug(true)
		db.SetDebug(true)
	}
	return nil
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	// Make sure the user-provided file exists to avoid silently running on defaults.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

// Execute runs the CLI entrypoint. The root main package calls this and
// handles process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command with every subcommand attached. Tests
// build a fresh tree per case.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "riskledger",
		Short: "Riskledger keeps the governance, risk and compliance register.",
		Long: `Riskledger stores assets, risks, controls, policies and incidents in a
relational database. This CLI creates portable backups of that register,
validates and previews them, and restores them into any supported engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
	}

	v, c, d := resolveBuildVersion(nil)
	compositeVersion := v
	if c != "" && c != "dev" {
		compositeVersion = compositeVersion + " (" + c + ")"
	}
	if d != "" {
		compositeVersion = compositeVersion + " built: " + d
	}
	cmd.Version = compositeVersion

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging (including database statements)")
	pf.String("config", "", "config file")
	pf.String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	pf.String("database.dsn", "./riskledger.db", "Database connection string (DSN)")
	pf.String("backup.dir", "./backups", "Directory holding backup files")
	pf.String("backup.compression", "gzip", "Backup compression (gzip, zstd, none)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newBackupCmd(),
		newListCmd(),
		newExportModuleCmd(),
		newRestoreCmd(),
		newValidateCmd(),
		newPreviewCmd(),
		newScheduleCmd(),
		newMigrateCmd(),
		newMaintainCmd(),
		newInitConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
			return nil
		},
	}
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault("dev")
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	if info == nil {
		if local, ok := debug.ReadBuildInfo(); ok {
			info = local
		}
	}
	if info != nil {
		if resolvedVersion == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" && resolvedCommit == "dev" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" && resolvedDate == "" {
					resolvedDate = s.Value
				}
			}
		}
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}
