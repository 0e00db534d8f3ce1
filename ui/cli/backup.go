// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/riskledger/riskledger/internal/backup"
	"github.com/riskledger/riskledger/internal/logging"
	"github.com/riskledger/riskledger/util/mapst"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [output-file]",
		Short: "Create a backup of the database",
		Long: `Snapshots every record type into a JSON artifact, compressed with gzip by
default, and writes it to the backup directory.

If no output file is specified, a default filename
'backup_YYYY-MM-DD_HH-mm-ss.json.gz' is used. Custom names are reduced to their
base name and get the compression suffix appended when it is missing.`,
		Example: `  # Backup to a default file in ./backups
  riskledger backup

  # Backup with zstd, leaving out the audit log
  riskledger backup --backup.compression zstd --include-audit-log=false nightly.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			includeAudit := appConfig.Backup.IncludeAuditLog
			if cmd.Flags().Changed("include-audit-log") {
				includeAudit, _ = cmd.Flags().GetBool("include-audit-log")
			}
			includeSessions, _ := cmd.Flags().GetBool("include-sessions")
			keep := appConfig.Backup.Keep
			if cmd.Flags().Changed("keep") {
				keep, _ = cmd.Flags().GetInt("keep")
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			return withApp(cmd.Context(), func(a *app) error {
				art, err := a.svc.CreateBackup(cmd.Context(), includeAudit, includeSessions)
				if err != nil {
					return fmt.Errorf("create backup: %w", err)
				}
				path, err := a.svc.SaveBackupToFile(art, name)
				if err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backup written to %s (%d records in %d record types)\n",
					path, art.Statistics.TotalRecords, art.Statistics.TotalEntities)
				printErrorMap(out, art.Statistics.Errors)

				if keep > 0 {
					removed, err := a.svc.PruneBackups(keep)
					if err != nil {
						logging.Warnf("prune backups: %v", err)
					}
					for _, p := range removed {
						fmt.Fprintf(out, "Removed old backup %s\n", p)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("include-audit-log", true, "Include the audit log (defaults to backup.include_audit_log)")
	cmd.Flags().Bool("include-sessions", false, "Include login sessions")
	cmd.Flags().Int("keep", 0, "Keep only the newest N backups after writing (0 keeps all)")
	return cmd
}

func printErrorMap(w io.Writer, errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(w, "Skipped record types:")
	for _, n := range mapst.SortedKeys(errs) {
		fmt.Fprintf(w, "  %s: %s\n", n, errs[n])
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup files, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := backup.ParseCompression(appConfig.Backup.Compression)
			if err != nil {
				return err
			}
			files, err := backup.NewFiles(appConfig.Backup.Dir, comp).List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", appConfig.Backup.Dir)
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILENAME\tSIZE\tCREATED\tAGE")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					f.Filename,
					humanize.Bytes(uint64(f.Size)),
					f.CreatedAt.Format("2006-01-02 15:04:05"),
					humanize.Time(f.CreatedAt))
			}
			return w.Flush()
		},
	}
}

func newExportModuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-module <module>",
		Short: "Export the records of one functional module as JSON",
		Long: `Writes the record types owned by a module (as configured under 'modules',
or the built-in map) as plain JSON. The output carries no metadata and cannot
be restored; use 'backup' for that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return withApp(cmd.Context(), func(a *app) error {
				exp, err := a.svc.ExportModuleData(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(exp, "", "  ")
				if err != nil {
					return err
				}
				b = append(b, '\n')
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(b)
					return err
				}
				if err := os.WriteFile(output, b, 0o600); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records of module %s to %s\n", exp.Count, exp.Module, output)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	return cmd
}
