package main

import (
	"github.com/spf13/cobra"

	"fluxscp/internal/capture"
	"fluxscp/internal/flux"
)

func newRebuildCommand(ctx *commandContext) *cobra.Command {
	var output string
	var fluxOffset int
	var overlapPolicy string
	var overlapCount int
	var bestEffort bool

	cmd := &cobra.Command{
		Use:   "rebuild <session>",
		Short: "Re-decode cached captures of a session with new decode settings",
		Long: "Rebuild reads the raw captures archived in the capture cache, decodes them " +
			"with the [decode] settings (or the flags below) and rewrites the session's image. " +
			"The sample format and revolution count of the original capture are kept.",
		Args: cobra.ExactArgs(1),
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

			sess, err := lookupSession(runCtx, store, args[0])
			if err != nil {
				return err
			}
			opts, err := cfg.DecodeOptions()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("flux-offset") {
				opts.FluxOffset = fluxOffset
			}
			if flags.Changed("overlap-policy") {
				if opts.Overlap.Policy, err = flux.ParseOverlapPolicy(overlapPolicy); err != nil {
					return err
				}
			}
			if flags.Changed("overlap-count") {
				opts.Overlap.Count = uint32(overlapCount)
			}
			keepBestEffort := cfg.Decode.BestEffort
			if flags.Changed("best-effort") {
				keepBestEffort = bestEffort
			}

			outputPath, err := resolveOutputPath(cfg, sess, output)
			if err != nil {
				return err
			}
			rebuilder, err := capture.NewRebuilder(cfg, store, cache, logger)
			if err != nil {
				return err
			}
			result, err := rebuilder.Run(runCtx, sess, opts, keepBestEffort, outputPath)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "Rebuild complete", result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Image output path (default: the session's previous image)")
	cmd.Flags().IntVar(&fluxOffset, "flux-offset", 0, "Override decode.flux_offset")
	cmd.Flags().StringVar(&overlapPolicy, "overlap-policy", "", "Override decode.overlap_policy (first, all-but-last, all, none)")
	cmd.Flags().IntVar(&overlapCount, "overlap-count", 0, "Override decode.overlap_count")
	cmd.Flags().BoolVar(&bestEffort, "best-effort", false, "Override decode.best_effort")
	return cmd
}
