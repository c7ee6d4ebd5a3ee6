package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofrs/flock"

	"fluxscp/internal/analyzer"
	"fluxscp/internal/capturecache"
	"fluxscp/internal/config"
	"fluxscp/internal/drive"
	"fluxscp/internal/flux"
	"fluxscp/internal/logging"
	"fluxscp/internal/scp"
	"fluxscp/internal/session"
)

// ErrDriveBusy means another process holds the drive lock.
var ErrDriveBusy = errors.New("drive is in use by another capture")

// Options wires the collaborators of a Runner.
type Options struct {
	Drive    drive.Drive
	Capturer analyzer.Capturer
	// Cache archives raw captures; nil disables archiving.
	Cache  *capturecache.Manager
	Logger *slog.Logger
	// LockPath is locked for the duration of a run; empty skips locking.
	LockPath string
	// ImageOptions are passed to the image encoder.
	ImageOptions []scp.Option
}

// Result summarizes a finished run.
type Result struct {
	SessionID  string
	OutputPath string
	ImageBytes int
	Captured   int
	Skipped    int
	Summary    session.Summary
}

// Runner captures the tracks of a session and writes its image.
type Runner struct {
	store     *session.Store
	drive     drive.Drive
	capturer  analyzer.Capturer
	cache     *capturecache.Manager
	logger    *slog.Logger
	lockPath  string
	retries   int
	imageOpts []scp.Option
}

// NewRunner validates the collaborators and returns a runner.
func NewRunner(cfg *config.Config, store *session.Store, opts Options) (*Runner, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("capture runner requires config and session store")
	}
	if opts.Drive == nil || opts.Capturer == nil {
		return nil, errors.New("capture runner requires a drive and a capturer")
	}
	retries := cfg.Capture.Retries
	if retries < 0 {
		retries = 0
	}
	return &Runner{
		store:     store,
		drive:     opts.Drive,
		capturer:  opts.Capturer,
		cache:     opts.Cache,
		logger:    logging.NewComponentLogger(opts.Logger, "capture"),
		lockPath:  strings.TrimSpace(opts.LockPath),
		retries:   retries,
		imageOpts: opts.ImageOptions,
	}, nil
}

// Run captures every track of sess not already recorded, then writes the
// image to outputPath and marks the session completed. On failure the session
// is marked failed, or aborted when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, sess *session.Session, outputPath string) (res *Result, err error) {
	if sess == nil {
		return nil, errors.New("session required")
	}
	if r.lockPath != "" {
		lock := flock.New(r.lockPath)
		ok, lockErr := lock.TryLock()
		if lockErr != nil {
			return nil, fmt.Errorf("acquire drive lock: %w", lockErr)
		}
		if !ok {
			return nil, ErrDriveBusy
		}
		defer func() {
			if unlockErr := lock.Unlock(); unlockErr != nil {
				r.logger.Warn("failed to release drive lock", logging.Error(unlockErr))
			}
		}()
	}

	ctx = logging.ContextWithSessionID(ctx, sess.ID)
	logger := logging.WithSession(r.logger, sess.ID)
	defer func() {
		if err != nil {
			markFinished(ctx, r.store, logger, sess.ID, err)
		}
	}()

	settings := sess.Settings
	decoder, err := settings.Decoder()
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	encoder, err := scp.NewEncoder(settings.Image, r.imageOpts...)
	if err != nil {
		return nil, fmt.Errorf("image encoder: %w", err)
	}
	done, err := r.store.Completed(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	plan := Plan(settings)
	if len(plan) == 0 {
		return nil, errors.New("nothing to capture: starting cylinder is past the last cylinder")
	}
	logger.InfoContext(ctx, "capture started",
		logging.Int("tracks", len(plan)),
		logging.Int("already_recorded", len(done)),
		logging.Int("revolutions", settings.Image.Revolutions),
		logging.String(logging.FieldEventType, "capture_started"),
	)

	if err := drive.Seek(ctx, r.drive, plan[0].Position); err != nil {
		return nil, fmt.Errorf("position drive: %w", err)
	}

	result := &Result{SessionID: sess.ID, OutputPath: outputPath}
	sampler := logging.NewProgressSampler(10)
	for i, target := range plan {
		if err := r.moveTo(ctx, target.Position); err != nil {
			return nil, err
		}
		if _, ok := done[target.Physical]; ok {
			result.Skipped++
			continue
		}
		rec, err := r.captureTrack(ctx, decoder, settings.BestEffort, sess.ID, target)
		if err != nil {
			return nil, err
		}
		if err := r.store.RecordTrack(ctx, sess.ID, rec); err != nil {
			return nil, err
		}
		result.Captured++
		if sampler.ShouldLog(i+1, len(plan)) {
			logger.InfoContext(ctx, "capture progress",
				logging.Int("done", i+1),
				logging.Int("total", len(plan)),
				logging.Float64("percent", logging.Percent(i+1, len(plan))),
				logging.String(logging.FieldEventType, "capture_progress"),
			)
		}
	}

	n, err := BuildImage(ctx, r.store, sess, encoder, outputPath)
	if err != nil {
		return nil, err
	}
	result.ImageBytes = n
	if result.Summary, err = r.store.Summarize(ctx, sess.ID); err != nil {
		return nil, err
	}
	if err := r.store.Finish(ctx, sess.ID, session.StatusCompleted, outputPath, summaryMessage(result.Summary)); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "capture finished",
		logging.String("output", outputPath),
		logging.Int("image_bytes", n),
		logging.Int("captured", result.Summary.Captured),
		logging.Int("warning", result.Summary.Warning),
		logging.Int("absent", result.Summary.Absent),
		logging.Int("failed", result.Summary.Failed),
		logging.String(logging.FieldEventType, "capture_finished"),
	)
	return result, nil
}

func (r *Runner) moveTo(ctx context.Context, position int) error {
	current := r.drive.Cylinder()
	switch {
	case position > current:
		return drive.StepN(ctx, r.drive, drive.Inward, position-current)
	case position < current:
		return drive.StepN(ctx, r.drive, drive.Outward, current-position)
	default:
		return nil
	}
}

// captureTrack acquires and decodes one track, retrying while attempts remain
// and the result could improve. Only drive errors and cancellation are
// returned as errors; everything else becomes the track's status.
func (r *Runner) captureTrack(ctx context.Context, decoder *flux.Decoder, bestEffort bool, sessionID string, t Target) (session.TrackRecord, error) {
	trackCtx := logging.ContextWithTrack(ctx, t.Cylinder, t.Side, t.Physical)
	trackLogger := logging.WithContext(trackCtx, r.logger)

	var (
		best     Outcome
		bestRaw  []byte
		attempts int
	)
	for attempt := 1; attempt <= 1+r.retries; attempt++ {
		attempts = attempt
		if err := r.drive.SelectHead(t.Side); err != nil {
			return session.TrackRecord{}, fmt.Errorf("select side %d: %w", t.Side, err)
		}
		raw, err := r.capturer.Capture(trackCtx, t.request())
		if err != nil && ctx.Err() != nil {
			return session.TrackRecord{}, ctx.Err()
		}

		var outcome Outcome
		if err != nil {
			outcome = Classify(nil, err, bestEffort)
		} else {
			track, decodeErr := decoder.Decode(t.Physical, raw)
			outcome = Classify(track, decodeErr, bestEffort)
		}
		if attempt == 1 || outcome.better(best) {
			best = outcome
			if raw != nil {
				bestRaw = raw
			}
		}
		if best.Status == session.TrackCaptured || !outcome.Retry || attempt > r.retries {
			break
		}
		logging.WarnWithContext(trackLogger, "track attempt unsuccessful; retrying", "track_retry",
			logging.Int("attempt", attempt),
			logging.String("status", string(outcome.Status)),
			logging.String("reason", outcome.Message),
			logging.String(logging.FieldErrorHint, "check disk condition and analyzer trigger settings"),
			logging.String(logging.FieldImpact, "track is captured again"),
		)
	}

	if bestRaw != nil {
		if err := r.cache.Store(ctx, sessionID, t.Physical, bestRaw); err != nil {
			logging.WarnWithContext(trackLogger, "failed to cache raw capture", "cache_store_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check cache_dir permissions and free space"),
				logging.String(logging.FieldImpact, "track cannot be rebuilt without recapture"),
			)
		}
	}

	switch best.Status {
	case session.TrackCaptured:
		trackLogger.DebugContext(ctx, "track captured", logging.Int("attempts", attempts))
	case session.TrackWarning:
		logging.WarnWithContext(trackLogger, "track kept from best-effort decode", "track_best_effort",
			logging.String("reason", best.Message),
			logging.String(logging.FieldImpact, "surplus index pulses were ignored"),
		)
	default:
		logging.WarnWithContext(trackLogger, "track not captured", "track_missing",
			logging.String("status", string(best.Status)),
			logging.String("reason", best.Message),
			logging.String(logging.FieldImpact, "image slot left empty"),
		)
	}

	return session.TrackRecord{
		Physical:   t.Physical,
		Cylinder:   t.Cylinder,
		Head:       t.Head,
		Status:     best.Status,
		Attempts:   attempts,
		IndexEdges: best.IndexEdges,
		Message:    best.Message,
		Track:      best.Track,
	}, nil
}

func summaryMessage(sum session.Summary) string {
	return fmt.Sprintf("%d captured, %d warning, %d absent, %d failed",
		sum.Captured, sum.Warning, sum.Absent, sum.Failed)
}

func markFinished(ctx context.Context, store *session.Store, logger *slog.Logger, id string, cause error) {
	status := session.StatusFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		status = session.StatusAborted
	}
	if err := store.Finish(context.WithoutCancel(ctx), id, status, "", cause.Error()); err != nil {
		logger.Warn("failed to record session status", logging.Error(err))
	}
}
