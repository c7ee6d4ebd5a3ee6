package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"fluxscp/internal/capturecache"
	"fluxscp/internal/config"
	"fluxscp/internal/flux"
	"fluxscp/internal/logging"
	"fluxscp/internal/scp"
	"fluxscp/internal/session"
)

// ErrNothingCached means the session has no cached raw captures to rebuild
// from.
var ErrNothingCached = errors.New("no cached captures for session")

// Rebuilder re-decodes cached raw captures with new decode options.
type Rebuilder struct {
	store     *session.Store
	cache     *capturecache.Manager
	logger    *slog.Logger
	workers   int
	imageOpts []scp.Option
}

// NewRebuilder returns a rebuilder using cfg's worker count.
func NewRebuilder(cfg *config.Config, store *session.Store, cache *capturecache.Manager, logger *slog.Logger, imageOpts ...scp.Option) (*Rebuilder, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("rebuilder requires config and session store")
	}
	if cache == nil {
		return nil, errors.New("rebuild requires the capture cache (cache.enabled)")
	}
	workers := cfg.Decode.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Rebuilder{
		store:     store,
		cache:     cache,
		logger:    logging.NewComponentLogger(logger, "rebuild"),
		workers:   workers,
		imageOpts: imageOpts,
	}, nil
}

type decodeJob struct {
	target Target
}

type decodeResult struct {
	target  Target
	outcome Outcome
}

// Run decodes every cached track of sess with the flux offset and overlap
// correction of decode, records the new outcomes, stores the options as the
// session's settings and writes the image. Tracks without a cached capture
// keep their previous rows. Once rows have been rewritten a failure marks the
// session failed, or aborted when ctx was cancelled.
func (r *Rebuilder) Run(ctx context.Context, sess *session.Session, decode flux.Options, bestEffort bool, outputPath string) (res *Result, err error) {
	if sess == nil {
		return nil, errors.New("session required")
	}
	ctx = logging.ContextWithSessionID(ctx, sess.ID)
	logger := logging.WithSession(r.logger, sess.ID)

	// The raw captures fix the sample format and revolution count.
	decode.Format = sess.Settings.Decode.Format
	decode.Revolutions = sess.Settings.Decode.Revolutions
	settings := sess.Settings
	settings.Decode = decode
	settings.BestEffort = bestEffort
	decoder, err := settings.Decoder()
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	encoder, err := scp.NewEncoder(settings.Image, r.imageOpts...)
	if err != nil {
		return nil, fmt.Errorf("image encoder: %w", err)
	}

	indices, err := r.cache.Tracks(sess.ID)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNothingCached, sess.ID)
	}
	existing, err := r.store.Tracks(ctx, sess.ID, false)
	if err != nil {
		return nil, err
	}
	attempts := make(map[uint32]int, len(existing))
	for _, rec := range existing {
		attempts[rec.Physical] = rec.Attempts
	}

	logger.InfoContext(ctx, "rebuild started",
		logging.Int("tracks", len(indices)),
		logging.Int("workers", r.workers),
		logging.Int("flux_offset", decode.FluxOffset),
		logging.String("overlap_policy", string(decode.Overlap.Policy)),
		logging.String(logging.FieldEventType, "rebuild_started"),
	)

	rewritten := false
	defer func() {
		if err != nil && rewritten {
			markFinished(ctx, r.store, logger, sess.ID, err)
		}
	}()

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := make(chan decodeJob)
	results := make(chan decodeResult)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				outcome := r.decodeCached(sess.ID, decoder, bestEffort, job.target)
				select {
				case results <- decodeResult{target: job.target, outcome: outcome}:
				case <-workCtx.Done():
					return
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, physical := range indices {
			select {
			case jobs <- decodeJob{target: targetFor(settings, physical)}:
			case <-workCtx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	result := &Result{SessionID: sess.ID, OutputPath: outputPath}
	sampler := logging.NewProgressSampler(25)
	var recordErr error
	for res := range results {
		if recordErr != nil {
			continue
		}
		t := res.target
		rec := session.TrackRecord{
			Physical:   t.Physical,
			Cylinder:   t.Cylinder,
			Head:       t.Head,
			Status:     res.outcome.Status,
			Attempts:   max(attempts[t.Physical], 1),
			IndexEdges: res.outcome.IndexEdges,
			Message:    res.outcome.Message,
			Track:      res.outcome.Track,
		}
		if err := r.store.RecordTrack(ctx, sess.ID, rec); err != nil {
			recordErr = err
			cancel()
			continue
		}
		rewritten = true
		result.Captured++
		if sampler.ShouldLog(result.Captured, len(indices)) {
			logger.InfoContext(ctx, "rebuild progress",
				logging.Int("done", result.Captured),
				logging.Int("total", len(indices)),
				logging.String(logging.FieldEventType, "rebuild_progress"),
			)
		}
	}
	if recordErr != nil {
		return nil, recordErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.store.UpdateSettings(ctx, sess.ID, settings); err != nil {
		return nil, err
	}
	sess.Settings = settings
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
	logger.InfoContext(ctx, "rebuild finished",
		logging.String("output", outputPath),
		logging.Int("image_bytes", n),
		logging.String(logging.FieldEventType, "rebuild_finished"),
	)
	return result, nil
}

func (r *Rebuilder) decodeCached(sessionID string, decoder *flux.Decoder, bestEffort bool, t Target) Outcome {
	raw, err := r.cache.Load(sessionID, t.Physical)
	if err != nil {
		return Outcome{Status: session.TrackFailed, Message: err.Error()}
	}
	track, err := decoder.Decode(t.Physical, raw)
	return Classify(track, err, bestEffort)
}
