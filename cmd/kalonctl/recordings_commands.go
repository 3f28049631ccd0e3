package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"kalonconnect/internal/core/services"
)

type recordingEntry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Bytes    int64     `json:"bytes"`
	Modified time.Time `json:"modified"`
}

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Manage stored call recordings",
	}
	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsDeleteCommand(ctx))
	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.recordingStorage()
			if err != nil {
				return err
			}
			svc := services.NewRecordingService(store, 0, ctx.cliLogger(cmd.ErrOrStderr()), nil)
			names, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}

			entries := make([]recordingEntry, 0, len(names))
			for _, name := range names {
				entry := recordingEntry{
					Name: name,
					Path: filepath.ToSlash(filepath.Join(services.RecordingPathPrefix, name)),
				}
				if info, err := os.Stat(filepath.Join(store.BasePath(), name)); err == nil {
					entry.Bytes = info.Size()
					entry.Modified = info.ModTime().UTC()
				}
				entries = append(entries, entry)
			}

			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No recordings")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, strconv.FormatInt(e.Bytes, 10), e.Modified.Format(time.RFC3339)})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Bytes", "Modified"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print recordings as JSON")
	return cmd
}

func newRecordingsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete stored recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.recordingStorage()
			if err != nil {
				return err
			}
			svc := services.NewRecordingService(store, 0, ctx.cliLogger(cmd.ErrOrStderr()), nil)

			out := cmd.OutOrStdout()
			for _, name := range args {
				if err := svc.Delete(cmd.Context(), name); err != nil {
					return fmt.Errorf("delete %s: %w", name, err)
				}
				fmt.Fprintf(out, "Deleted %s\n", name)
			}
			return nil
		},
	}
}
