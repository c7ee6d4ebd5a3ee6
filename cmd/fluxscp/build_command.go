package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"fluxscp/internal/analyzer"
	"fluxscp/internal/capture"
	"fluxscp/internal/drive"
	"fluxscp/internal/session"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var label string
	var output string
	var sessionRef string

	cmd := &cobra.Command{
		Use:   "build [capture-dir]",
		Short: "Write an SCP image from exported captures or a recorded session",
		Long: "With a directory argument, build decodes pre-exported captures named by " +
			"analyzer.file_pattern into a new session and writes the image. With --session, " +
			"build writes the image from the tracks already recorded in that session.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.TrimSpace(sessionRef)
			switch {
			case ref != "" && len(args) > 0:
				return errors.New("pass either a capture directory or --session, not both")
			case ref == "" && len(args) == 0:
				return errors.New("a capture directory or --session is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.sessions()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()

			if ref != "" {
				sess, err := lookupSession(runCtx, store, ref)
				if err != nil {
					return err
				}
				outputPath, err := resolveOutputPath(cfg, sess, output)
				if err != nil {
					return err
				}
				n, err := capture.BuildImage(runCtx, store, sess, nil, outputPath)
				if err != nil {
					return err
				}
				if err := store.Finish(runCtx, sess.ID, sess.Status, outputPath, sess.Message); err != nil {
					return err
				}
				summary, err := store.Summarize(runCtx, sess.ID)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), "Image built", &capture.Result{
					SessionID:  sess.ID,
					OutputPath: outputPath,
					ImageBytes: n,
					Summary:    summary,
				})
				return nil
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			cache, err := ctx.captureCache()
			if err != nil {
				return err
			}
			dirPath, err := expandArgPath(args[0])
			if err != nil {
				return err
			}
			source, err := analyzer.NewDir(dirPath, cfg.Analyzer.FilePattern)
			if err != nil {
				return err
			}
			settings, err := session.SettingsFromConfig(cfg)
			if err != nil {
				return err
			}
			if strings.TrimSpace(label) == "" {
				label = defaultLabelFromDir(dirPath)
			}
			sess, err := store.Create(runCtx, label, settings)
			if err != nil {
				return err
			}
			outputPath, err := resolveOutputPath(cfg, sess, output)
			if err != nil {
				return err
			}

			// Exported files do not change between attempts.
			replay := *cfg
			replay.Capture.Retries = 0
			runner, err := capture.NewRunner(&replay, store, capture.Options{
				Drive:    drive.NewManual(),
				Capturer: source,
				Cache:    cache,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			result, err := runner.Run(runCtx, sess, outputPath)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "Image built", result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "Label for the new session (default: directory name)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Image output path")
	cmd.Flags().StringVarP(&sessionRef, "session", "s", "", "Build from a recorded session (identifier, prefix, or \"latest\")")
	return cmd
}
