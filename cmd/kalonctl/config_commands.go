package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/services"
	"kalonconnect/internal/infrastructure/repositories/memory"
	"kalonconnect/pkg/validation"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and replace the video system document",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the video system document the service would serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.videoConfigService(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			doc := svc.Load(cmd.Context())
			if asJSON {
				return writeJSON(cmd, doc)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderVideoConfig(doc))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the document as JSON")
	return cmd
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	var (
		defaultSystem string
		options       []string
		quality       string
		autoStart     bool
		storagePath   string
		background    string
		ambience      string
		noWaitingRoom bool
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the video system document and save it whole",
		Long: "Loads the current document, applies the given flags and replaces the stored\n" +
			"document. The result is validated first; an invalid document is not written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.videoConfigService(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			doc := svc.Load(cmd.Context())

			flags := cmd.Flags()
			if flags.Changed("default-system") {
				doc.DefaultSystem = domain.VideoSystem(strings.TrimSpace(defaultSystem))
			}
			if flags.Changed("options") {
				doc.Options = make([]domain.VideoSystem, 0, len(options))
				for _, opt := range options {
					doc.Options = append(doc.Options, domain.VideoSystem(strings.TrimSpace(opt)))
				}
			}
			if flags.Changed("quality") {
				doc.VideoQuality = domain.VideoQuality(strings.TrimSpace(quality))
			}
			if flags.Changed("auto-start") {
				doc.Recording.AutoStart = autoStart
			}
			if flags.Changed("storage-path") {
				doc.Recording.StoragePath = strings.TrimSpace(storagePath)
			}
			if noWaitingRoom {
				doc.WaitingRoom = nil
			} else if flags.Changed("waiting-room-background") || flags.Changed("waiting-room-audio") {
				room := domain.WaitingRoom{}
				if doc.WaitingRoom != nil {
					room = *doc.WaitingRoom
				}
				if flags.Changed("waiting-room-background") {
					room.Background = strings.TrimSpace(background)
				}
				if flags.Changed("waiting-room-audio") {
					room.AmbienceAudio = strings.TrimSpace(ambience)
				}
				doc.WaitingRoom = &room
			}

			target := svc
			if dryRun {
				target = services.NewVideoConfigService(memory.NewVideoConfigRepository(), ctx.cliLogger(cmd.ErrOrStderr()), nil, nil)
			}
			saved, err := target.Save(cmd.Context(), doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run: document is valid and was not saved")
			} else {
				fmt.Fprintln(out, "Video system document saved")
			}
			fmt.Fprintln(out, renderVideoConfig(saved))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&defaultSystem, "default-system", "", "Default video system (google-meet, highmesh)")
	flags.StringSliceVar(&options, "options", nil, "Comma separated list of offered video systems")
	flags.StringVar(&quality, "quality", "", "Video quality (sd, hd)")
	flags.BoolVar(&autoStart, "auto-start", false, "Start recording automatically")
	flags.StringVar(&storagePath, "storage-path", "", "Recording storage path")
	flags.StringVar(&background, "waiting-room-background", "", "Waiting room background asset")
	flags.StringVar(&ambience, "waiting-room-audio", "", "Waiting room ambience audio asset")
	flags.BoolVar(&noWaitingRoom, "no-waiting-room", false, "Remove the waiting room section")
	flags.BoolVar(&dryRun, "dry-run", false, "Validate the result without saving it")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a document file, or the stored document when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				doc    domain.VideoSystemConfig
				source string
			)
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				if err := json.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("parse document %s: %w", args[0], err)
				}
				source = args[0]
			} else {
				repo, store, err := ctx.videoConfigRepository(cmd.Context(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				doc, err = repo.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load stored document: %w", err)
				}
				source = store + " store"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s\n", source)
			if err := validation.ValidateVideoConfig(doc); err != nil {
				if _, corrections := services.Normalize(doc); len(corrections) > 0 {
					fmt.Fprintln(out, "The service would serve this document with these corrections:")
					for _, c := range corrections {
						fmt.Fprintf(out, "  - %s\n", c)
					}
				}
				return err
			}
			fmt.Fprintln(out, "Document valid")
			return nil
		},
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default video system document to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, store, err := ctx.videoConfigRepository(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if !overwrite {
				_, err := repo.Load(cmd.Context())
				switch {
				case err == nil:
					return fmt.Errorf("a video system document already exists in the %s store (use --overwrite to replace it)", store)
				case !errors.Is(err, domain.ErrConfigNotFound):
					return fmt.Errorf("stored document is unreadable (use --overwrite to replace it): %w", err)
				}
			}

			svc := services.NewVideoConfigService(repo, ctx.cliLogger(cmd.ErrOrStderr()), nil, nil)
			if _, err := svc.Save(cmd.Context(), domain.DefaultVideoSystemConfig()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote default video system document to the %s store\n", store)
			if cfg, err := ctx.ensureConfig(); err == nil && store == "file" {
				fmt.Fprintf(out, "Path: %s\n", cfg.Video.ConfigPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing document")
	return cmd
}

func renderVideoConfig(doc domain.VideoSystemConfig) string {
	options := make([]string, 0, len(doc.Options))
	for _, opt := range doc.Options {
		options = append(options, string(opt))
	}

	rows := [][]string{
		{"defaultSystem", string(doc.DefaultSystem)},
		{"options", strings.Join(options, ", ")},
		{"videoQuality", string(doc.VideoQuality)},
		{"recording.autoStart", yesNo(doc.Recording.AutoStart)},
		{"recording.storagePath", doc.Recording.StoragePath},
	}
	if doc.WaitingRoom != nil {
		rows = append(rows,
			[]string{"waitingRoom.background", doc.WaitingRoom.Background},
			[]string{"waitingRoom.ambienceAudio", doc.WaitingRoom.AmbienceAudio},
		)
	} else {
		rows = append(rows, []string{"waitingRoom", "(none)"})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
