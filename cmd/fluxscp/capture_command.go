package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fluxscp/internal/analyzer"
	"fluxscp/internal/capture"
	"fluxscp/internal/drive"
	"fluxscp/internal/logging"
	"fluxscp/internal/session"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var label string
	var output string
	var resume string
	var manual bool

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a disk through the drive and logic analyzer",
		Long: "Capture steps the drive across every configured track, records each " +
			"capture in a session and writes an SCP image when the last track is done. " +
			"Use --resume to continue an interrupted session.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ctx.sessions()
			if err != nil {
				return err
			}
			cache, err := ctx.captureCache()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()

			var sess *session.Session
			if ref := strings.TrimSpace(resume); ref != "" {
				sess, err = lookupSession(runCtx, store, ref)
				if err != nil {
					return err
				}
				if err := store.Reopen(runCtx, sess.ID); err != nil {
					return err
				}
			} else {
				settings, err := session.SettingsFromConfig(cfg)
				if err != nil {
					return err
				}
				sess, err = store.Create(runCtx, label, settings)
				if err != nil {
					return err
				}
			}
			outputPath, err := resolveOutputPath(cfg, sess, output)
			if err != nil {
				return err
			}

			var d drive.Drive
			if manual {
				d = drive.NewManual()
			} else {
				wait := time.Duration(cfg.Drive.WaitForDeviceSeconds) * time.Second
				if err := drive.WaitForDevice(runCtx, cfg.Drive.SerialPort, wait, logger); err != nil {
					return fmt.Errorf("serial adapter %s: %w", cfg.Drive.SerialPort, err)
				}
				serial, err := drive.OpenSerial(cfg, logger)
				if err != nil {
					return err
				}
				d = serial
			}
			defer func() {
				if closeErr := d.Close(); closeErr != nil {
					logger.Warn("failed to close drive", logging.Error(closeErr))
				}
			}()

			capturer, err := analyzer.FromConfig(cfg, logger)
			if err != nil {
				return err
			}
			runner, err := capture.NewRunner(cfg, store, capture.Options{
				Drive:    d,
				Capturer: capturer,
				Cache:    cache,
				Logger:   logger,
				LockPath: cfg.DriveLockPath(),
			})
			if err != nil {
				return err
			}

			result, err := runner.Run(runCtx, sess, outputPath)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "Capture complete", result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "Label stored with the session and used for the image name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Image output path (default: <output_dir>/<label>.scp)")
	cmd.Flags().StringVar(&resume, "resume", "", "Resume an existing session (identifier, prefix, or \"latest\")")
	cmd.Flags().BoolVar(&manual, "manual", false, "Skip drive control (head positioned externally)")
	return cmd
}

func printResult(out io.Writer, title string, result *capture.Result) {
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, result.SessionID, colorize))
	fmt.Fprintln(out, renderStatusLine("Image", statusOK, fmt.Sprintf("%s (%s)", result.OutputPath, formatBytes(int64(result.ImageBytes))), colorize))
	if result.Skipped > 0 {
		fmt.Fprintln(out, renderStatusLine("Resumed", statusInfo, fmt.Sprintf("%d tracks already recorded", result.Skipped), colorize))
	}
	writeSummary(out, result.Summary, colorize)
}
