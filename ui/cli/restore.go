// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/riskledger/riskledger/internal/backup"
	"github.com/riskledger/riskledger/internal/security"
	"github.com/riskledger/riskledger/util/mapst"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errAborted is returned when the operator declines a confirmation.
var errAborted = errors.New("aborted by user")

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore the database from a backup file",
		Long: `Validates a backup file and applies it to the configured database inside a
single transaction.

Records that already exist are overwritten ('--strategy update', the default)
or left alone ('--strategy skip'). A record that fails is counted and reported
without stopping the restore. With --clear, every record type contained in the
backup is emptied first. --dry-run performs the whole restore and then rolls
it back.

Credentials are redacted in backups, so restored accounts cannot sign in until
a password is set. --reset-admin-password prompts for a new administrator
password and stores its bcrypt hash as part of the restore.`,
		Example: `  riskledger restore ./backups/backup_2026-10-01_02-00-00.json.gz
  riskledger restore --dry-run --strategy skip nightly.json.zst
  riskledger restore --clear --reset-admin-password --yes nightly.json.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, _ := cmd.Flags().GetString("strategy")
			clearFirst, _ := cmd.Flags().GetBool("clear")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			resetAdmin, _ := cmd.Flags().GetBool("reset-admin-password")
			yes, _ := cmd.Flags().GetBool("yes")

			opts := backup.RestoreOptions{
				Strategy:           backup.Strategy(strategy),
				ClearBeforeRestore: clearFirst,
				DryRun:             dryRun,
			}
			in := newLineReader(cmd)
			if resetAdmin {
				pw, err := readNewPassword(cmd, in)
				if err != nil {
					return err
				}
				opts.AdminPassword = pw
				defer opts.AdminPassword.Zero()
			}
			if (clearFirst || resetAdmin) && !dryRun && !yes {
				prompt := "This restore will overwrite data in " + appConfig.Database.Type + " database"
				if clearFirst {
					prompt += " and delete existing records first"
				}
				if !confirm(cmd.ErrOrStderr(), in, prompt+". Continue? [y/N]: ") {
					return errAborted
				}
			}

			return withApp(cmd.Context(), func(a *app) error {
				art, err := a.svc.LoadBackupFromFile(args[0])
				if err != nil {
					return err
				}
				res, err := a.svc.RestoreFromBackup(cmd.Context(), art, opts)
				printRestoreResult(cmd.OutOrStdout(), res)
				return err
			})
		},
	}
	cmd.Flags().String("strategy", string(backup.StrategyUpdate), "What to do with existing records: update or skip")
	cmd.Flags().Bool("clear", false, "Delete existing records of the restored types first (destructive)")
	cmd.Flags().Bool("dry-run", false, "Run the restore and roll it back")
	cmd.Flags().Bool("reset-admin-password", false, "Prompt for a new administrator password to set during the restore")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// readNewPassword reads the administrator password twice. A terminal gets
// hidden input; piped input is read line by line.
func readNewPassword(cmd *cobra.Command, in *bufio.Reader) (security.Secret, error) {
	read := func(prompt string) ([]byte, error) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			return b, err
		}
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, err
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}

	first, err := read("New administrator password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	second, err := read("Repeat password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	pw := security.FromBytes(first)
	match := string(first) == string(second)
	clear(first)
	clear(second)
	if !match {
		pw.Zero()
		return nil, errors.New("passwords do not match")
	}
	if pw.IsEmpty() {
		return nil, errors.New("empty password")
	}
	return pw, nil
}

func newLineReader(cmd *cobra.Command) *bufio.Reader {
	return bufio.NewReader(cmd.InOrStdin())
}

// confirm asks prompt and reports whether the answer was yes.
func confirm(w io.Writer, in *bufio.Reader, prompt string) bool {
	fmt.Fprint(w, prompt)
	answer, _ := in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func printRestoreResult(w io.Writer, res *backup.RestoreResult) {
	if res == nil {
		return
	}
	switch {
	case !res.Success:
		fmt.Fprintf(w, "Restore failed (%s): %s\n", res.State, res.Error)
	case res.DryRun:
		fmt.Fprintln(w, "Dry run completed; no changes were kept.")
	default:
		fmt.Fprintln(w, "Restore completed.")
	}

	if len(res.Statistics) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tCREATED\tUPDATED\tSKIPPED\tFAILED")
		for _, n := range mapst.SortedKeys(res.Statistics) {
			c := res.Statistics[n]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", n, c.Created, c.Updated, c.Skipped, c.Failed)
		}
		_ = tw.Flush()
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <backup-file>",
		Short: "Check that a backup file can be restored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				art, err := a.svc.LoadBackupFromFile(args[0])
				if err != nil {
					return err
				}
				vr := a.svc.ValidateBackup(art)
				out := cmd.OutOrStdout()
				for _, e := range vr.Errors {
					fmt.Fprintf(out, "error: %s\n", e)
				}
				for _, warn := range vr.Warnings {
					fmt.Fprintf(out, "warning: %s\n", warn)
				}
				if !vr.Valid {
					return fmt.Errorf("%w: %s", backup.ErrValidation, args[0])
				}
				fmt.Fprintf(out, "%s is a valid backup\n", args[0])
				return nil
			})
		},
	}
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <backup-file>",
		Short: "Compare a backup's contents with the live database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				art, err := a.svc.LoadBackupFromFile(args[0])
				if err != nil {
					return err
				}
				p, err := a.svc.GetRestorePreview(cmd.Context(), art)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if m := p.Metadata; m != nil {
					fmt.Fprintf(out, "Backup %s version %s created %s by %s %s (%s)\n",
						m.GeneratorInfo.BackupID, m.Version, m.CreatedAt.Format("2006-01-02 15:04:05"),
						m.GeneratorInfo.Application, m.GeneratorInfo.AppVersion, m.GeneratorInfo.Dialect)
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TYPE\tIN BACKUP\tEXISTING")
				for _, n := range mapst.SortedKeys(p.Entities) {
					e := p.Entities[n]
					fmt.Fprintf(tw, "%s\t%d\t%d\n", n, e.ToRestore, e.Existing)
				}
				fmt.Fprintf(tw, "TOTAL\t%d\t\n", p.TotalRecords)
				return tw.Flush()
			})
		},
	}
}
