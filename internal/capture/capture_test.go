package capture_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"fluxscp/internal/analyzer"
	"fluxscp/internal/capture"
	"fluxscp/internal/capturecache"
	"fluxscp/internal/config"
	"fluxscp/internal/drive"
	"fluxscp/internal/flux"
	"fluxscp/internal/logging"
	"fluxscp/internal/scp"
	"fluxscp/internal/session"
	"fluxscp/internal/testsupport"
)

const pattern = "c%02d_h%d.bin"

func goodTrack() []byte {
	return testsupport.RegularTrack(2, 100, 10).Bytes()
}

func shortTrack() []byte {
	return testsupport.NewCapture(400).IndexPulses(100, 200).EvenFlux(10, 399, 10).Bytes()
}

func surplusTrack() []byte {
	return testsupport.RegularTrack(3, 100, 10).Bytes()
}

// scriptedCapturer serves buffers from a function and records the drive
// position at each call.
type scriptedCapturer struct {
	drive     drive.Drive
	serve     func(call, cyl, head int) ([]byte, error)
	calls     int
	positions []int
	tracks    []analyzer.Track
}

func (s *scriptedCapturer) Capture(ctx context.Context, track analyzer.Track) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls++
	s.tracks = append(s.tracks, track)
	if s.drive != nil {
		s.positions = append(s.positions, s.drive.Cylinder())
	}
	return s.serve(s.calls, track.Cylinder, track.Side)
}

type fixture struct {
	cfg   *config.Config
	store *session.Store
	cache *capturecache.Manager
	sess  *session.Session
	out   string
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenSessions(t, cfg)
	cache, err := capturecache.NewManager(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(cache.Close)
	return &fixture{
		cfg:   cfg,
		store: store,
		cache: cache,
		sess:  testsupport.NewSession(t, store, cfg, "test"),
		out:   filepath.Join(cfg.Paths.OutputDir, "disk.scp"),
	}
}

func (f *fixture) runner(t *testing.T, d drive.Drive, c analyzer.Capturer) *capture.Runner {
	t.Helper()
	r, err := capture.NewRunner(f.cfg, f.store, capture.Options{
		Drive:    d,
		Capturer: c,
		Cache:    f.cache,
		Logger:   logging.NewNop(),
		LockPath: f.cfg.DriveLockPath(),
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func (f *fixture) mustEnsureDirs(t *testing.T) {
	t.Helper()
	if err := f.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
}

func parseImage(t *testing.T, path string) *scp.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	img, err := scp.Parse(data)
	if err != nil {
		t.Fatalf("parse image: %v", err)
	}
	return img
}

func TestRunCapturesEveryTrack(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, testsupport.WithCaptureDir(dir))
	f.mustEnsureDirs(t)
	testsupport.WriteCaptureSet(t, dir, pattern, 2, 4, func(int, int) []byte { return goodTrack() })

	capturer, err := analyzer.NewDir(dir, pattern)
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}
	res, err := f.runner(t, drive.NewManual(), capturer).Run(context.Background(), f.sess, f.out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Summary.Captured != 8 || res.Summary.Total() != 8 || res.Captured != 8 {
		t.Fatalf("unexpected summary %+v (captured %d)", res.Summary, res.Captured)
	}

	img := parseImage(t, f.out)
	if len(img.Tracks) != 8 {
		t.Fatalf("image tracks = %d, want 8", len(img.Tracks))
	}
	if img.Header.EndTrack != 7 || img.Header.Revolutions != 2 {
		t.Fatalf("unexpected header %+v", img.Header)
	}
	if res.ImageBytes <= 0 {
		t.Fatalf("expected image size")
	}

	got, err := f.store.Get(context.Background(), f.sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != session.StatusCompleted || got.OutputPath != f.out {
		t.Fatalf("unexpected session state %+v", got)
	}

	cached, err := f.cache.Tracks(f.sess.ID)
	if err != nil {
		t.Fatalf("cache tracks: %v", err)
	}
	if len(cached) != 8 {
		t.Fatalf("cached %d tracks, want 8", len(cached))
	}
}

func TestRunClassifiesTracks(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, testsupport.WithCaptureDir(dir))
	f.cfg.Capture.Retries = 0
	f.mustEnsureDirs(t)
	testsupport.WriteCaptureSet(t, dir, pattern, 2, 4, func(cyl, head int) []byte {
		switch {
		case cyl == 0 && head == 0:
			return shortTrack()
		case cyl == 1 && head == 1:
			return surplusTrack()
		case cyl == 2 && head == 0:
			return nil
		default:
			return goodTrack()
		}
	})
	capturer, err := analyzer.NewDir(dir, pattern)
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}

	res, err := f.runner(t, drive.NewManual(), capturer).Run(context.Background(), f.sess, f.out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := session.Summary{Captured: 5, Warning: 1, Absent: 2}
	if res.Summary != want {
		t.Fatalf("summary = %+v, want %+v", res.Summary, want)
	}

	records, err := f.store.Tracks(context.Background(), f.sess.ID, false)
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	byPhysical := map[uint32]session.TrackRecord{}
	for _, rec := range records {
		byPhysical[rec.Physical] = rec
	}
	if rec := byPhysical[0]; rec.Status != session.TrackAbsent || rec.IndexEdges != 2 {
		t.Fatalf("track 0 = %+v, want absent with 2 index edges", rec)
	}
	if rec := byPhysical[3]; rec.Status != session.TrackWarning || rec.IndexEdges != 4 {
		t.Fatalf("track 3 = %+v, want warning with 4 index edges", rec)
	}
	if rec := byPhysical[4]; rec.Status != session.TrackAbsent || rec.Attempts != 1 {
		t.Fatalf("track 4 = %+v, want absent after one attempt", rec)
	}

	img := parseImage(t, f.out)
	if img.Offsets[0] != 0 || img.Offsets[4] != 0 {
		t.Fatalf("absent tracks must have zero offsets: %v", img.Offsets)
	}
	if _, ok := img.Track(3); !ok {
		t.Fatalf("best-effort track should be written")
	}
}

func TestRunDropsBestEffortWhenDisabled(t *testing.T) {
	f := newFixture(t, testsupport.WithGeometry(1, 1))
	f.cfg.Decode.BestEffort = false
	f.cfg.Capture.Retries = 0
	f.mustEnsureDirs(t)
	f.sess = testsupport.NewSession(t, f.store, f.cfg, "strict")

	capturer := &scriptedCapturer{serve: func(int, int, int) ([]byte, error) { return surplusTrack(), nil }}
	_, err := f.runner(t, drive.NewManual(), capturer).Run(context.Background(), f.sess, f.out)
	if !errors.Is(err, scp.ErrEmptyStore) {
		t.Fatalf("expected ErrEmptyStore with only an absent track, got %v", err)
	}
	got, err := f.store.Get(context.Background(), f.sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != session.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if _, statErr := os.Stat(f.out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("no image should be written, stat err=%v", statErr)
	}
}

func TestRunRetriesUntilClean(t *testing.T) {
	f := newFixture(t, testsupport.WithGeometry(1, 2))
	f.cfg.Capture.Retries = 2
	f.mustEnsureDirs(t)

	capturer := &scriptedCapturer{serve: func(call, cyl, _ int) ([]byte, error) {
		if cyl == 0 && call == 1 {
			return shortTrack(), nil
		}
		if cyl == 0 && call == 2 {
			return nil, errors.New("usb hiccup")
		}
		return goodTrack(), nil
	}}
	res, err := f.runner(t, drive.NewManual(), capturer).Run(context.Background(), f.sess, f.out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Summary.Captured != 2 {
		t.Fatalf("summary = %+v, want two captured", res.Summary)
	}
	if capturer.calls != 4 {
		t.Fatalf("capture calls = %d, want 4", capturer.calls)
	}
	records, err := f.store.Tracks(context.Background(), f.sess.ID, false)
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	if records[0].Attempts != 3 || records[1].Attempts != 1 {
		t.Fatalf("attempts = %d/%d, want 3/1", records[0].Attempts, records[1].Attempts)
	}
}

func TestRunResumesSession(t *testing.T) {
	f := newFixture(t)
	f.mustEnsureDirs(t)
	ctx := context.Background()

	cancelCtx, cancel := context.WithCancel(ctx)
	first := &scriptedCapturer{serve: func(call, _, _ int) ([]byte, error) {
		if call == 5 {
			cancel()
			return nil, context.Canceled
		}
		return goodTrack(), nil
	}}
	_, err := f.runner(t, drive.NewManual(), first).Run(cancelCtx, f.sess, f.out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	got, err := f.store.Get(ctx, f.sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != session.StatusAborted {
		t.Fatalf("status = %s, want aborted", got.Status)
	}

	if err := f.store.Reopen(ctx, f.sess.ID); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second := &scriptedCapturer{serve: func(int, int, int) ([]byte, error) { return goodTrack(), nil }}
	res, err := f.runner(t, drive.NewManual(), second).Run(ctx, f.sess, f.out)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Skipped != 4 || res.Captured != 4 || second.calls != 4 {
		t.Fatalf("skipped=%d captured=%d calls=%d, want 4/4/4", res.Skipped, res.Captured, second.calls)
	}
	if res.Summary.Captured != 8 {
		t.Fatalf("summary = %+v", res.Summary)
	}
}

func TestRunHonoursStartingCylinderAndTrackSkip(t *testing.T) {
	f := newFixture(t, testsupport.WithGeometry(1, 4))
	f.cfg.Geometry.StartingCylinder = 1
	f.cfg.Geometry.TrackSkip = 1
	f.cfg.Geometry.Side = 1
	f.mustEnsureDirs(t)
	f.sess = testsupport.NewSession(t, f.store, f.cfg, "skip")

	d := drive.NewManual()
	var sides []int
	capturer := &scriptedCapturer{drive: d, serve: func(_ int, _ int, head int) ([]byte, error) {
		sides = append(sides, head)
		return goodTrack(), nil
	}}
	if _, err := f.runner(t, d, capturer).Run(context.Background(), f.sess, f.out); err != nil {
		t.Fatalf("run: %v", err)
	}
	wantPositions := []int{2, 4, 6}
	if len(capturer.positions) != len(wantPositions) {
		t.Fatalf("positions = %v, want %v", capturer.positions, wantPositions)
	}
	for i := range wantPositions {
		if capturer.positions[i] != wantPositions[i] || sides[i] != 1 {
			t.Fatalf("positions = %v sides = %v, want %v on side 1", capturer.positions, sides, wantPositions)
		}
		if want := uint32(i + 1); capturer.tracks[i].Physical != want || capturer.tracks[i].Cylinder != int(want) {
			t.Fatalf("capture %d requested %+v, want cylinder and physical index %d", i, capturer.tracks[i], want)
		}
	}

	img := parseImage(t, f.out)
	if img.Header.HeadCode != 2 {
		t.Fatalf("head code = %d, want 2 for side 1 only", img.Header.HeadCode)
	}
	if img.Offsets[0] != 0 {
		t.Fatalf("cylinder 0 was not captured and must be empty")
	}
	if _, ok := img.Track(3); !ok {
		t.Fatalf("expected cylinder 3 in slot 3")
	}
}

func TestRunRefusesLockedDrive(t *testing.T) {
	f := newFixture(t)
	f.mustEnsureDirs(t)

	held := flock.New(f.cfg.DriveLockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	capturer := &scriptedCapturer{serve: func(int, int, int) ([]byte, error) { return goodTrack(), nil }}
	_, err = f.runner(t, drive.NewManual(), capturer).Run(context.Background(), f.sess, f.out)
	if !errors.Is(err, capture.ErrDriveBusy) {
		t.Fatalf("expected ErrDriveBusy, got %v", err)
	}
	if capturer.calls != 0 {
		t.Fatalf("no capture may run while the drive is locked")
	}
}

func TestRebuildAppliesNewDecodeOptions(t *testing.T) {
	f := newFixture(t, testsupport.WithGeometry(2, 2))
	f.mustEnsureDirs(t)
	f.sess = testsupport.NewSession(t, f.store, f.cfg, "rebuild")
	ctx := context.Background()

	capturer := &scriptedCapturer{serve: func(int, int, int) ([]byte, error) { return goodTrack(), nil }}
	if _, err := f.runner(t, drive.NewManual(), capturer).Run(ctx, f.sess, f.out); err != nil {
		t.Fatalf("run: %v", err)
	}
	before := parseImage(t, f.out)
	tb, _ := before.Track(0)
	firstBitcells := tb.Revolutions[0].Bitcells

	rebuilder, err := capture.NewRebuilder(f.cfg, f.store, f.cache, logging.NewNop())
	if err != nil {
		t.Fatalf("new rebuilder: %v", err)
	}
	opts, err := f.cfg.DecodeOptions()
	if err != nil {
		t.Fatalf("decode options: %v", err)
	}
	opts.Overlap.Policy = flux.OverlapNone
	opts.FluxOffset = 2

	sess, err := f.store.Get(ctx, f.sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rebuilt := filepath.Join(t.TempDir(), "rebuilt.scp")
	res, err := rebuilder.Run(ctx, sess, opts, true, rebuilt)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Captured != 4 || res.Summary.Captured != 4 {
		t.Fatalf("unexpected rebuild result %+v", res)
	}

	after := parseImage(t, rebuilt)
	ta, ok := after.Track(0)
	if !ok {
		t.Fatalf("rebuilt image lacks track 0")
	}
	if ta.Revolutions[0].Bitcells != firstBitcells+1 {
		t.Fatalf("bitcells = %d, want %d without overlap correction", ta.Revolutions[0].Bitcells, firstBitcells+1)
	}

	updated, err := f.store.Get(ctx, f.sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Settings.Decode.Overlap.Policy != flux.OverlapNone || updated.Settings.Decode.FluxOffset != 2 {
		t.Fatalf("settings not updated: %+v", updated.Settings.Decode)
	}
	if updated.OutputPath != rebuilt {
		t.Fatalf("output path = %q, want %q", updated.OutputPath, rebuilt)
	}
}

func TestRebuildMarksSessionFailedWhenImageFails(t *testing.T) {
	f := newFixture(t, testsupport.WithGeometry(2, 2))
	f.mustEnsureDirs(t)
	ctx := context.Background()

	capturer := &scriptedCapturer{serve: func(int, int, int) ([]byte, error) { return goodTrack(), nil }}
	if _, err := f.runner(t, drive.NewManual(), capturer).Run(ctx, f.sess, f.out); err != nil {
		t.Fatalf("run: %v", err)
	}

	rebuilder, err := capture.NewRebuilder(f.cfg, f.store, f.cache, logging.NewNop())
	if err != nil {
		t.Fatalf("new rebuilder: %v", err)
	}
	opts, err := f.cfg.DecodeOptions()
	if err != nil {
		t.Fatalf("decode options: %v", err)
	}
	// Pushes every flux window past the end of the capture.
	opts.FluxOffset = 1000

	sess, err := f.store.Get(ctx, f.sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_, err = rebuilder.Run(ctx, sess, opts, true, filepath.Join(t.TempDir(), "rebuilt.scp"))
	if !errors.Is(err, scp.ErrEmptyStore) {
		t.Fatalf("expected ErrEmptyStore, got %v", err)
	}

	updated, err := f.store.Get(ctx, f.sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Status != session.StatusFailed {
		t.Fatalf("status = %q, want %q", updated.Status, session.StatusFailed)
	}
	sum, err := f.store.Summarize(ctx, f.sess.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Absent != 4 {
		t.Fatalf("expected every track absent after the skewed rebuild, got %+v", sum)
	}
}

func TestRebuildRequiresCache(t *testing.T) {
	f := newFixture(t)
	if _, err := capture.NewRebuilder(f.cfg, f.store, nil, logging.NewNop()); err == nil {
		t.Fatalf("expected error without cache")
	}

	rebuilder, err := capture.NewRebuilder(f.cfg, f.store, f.cache, logging.NewNop())
	if err != nil {
		t.Fatalf("new rebuilder: %v", err)
	}
	opts, _ := f.cfg.DecodeOptions()
	_, err = rebuilder.Run(context.Background(), f.sess, opts, true, f.out)
	if !errors.Is(err, capture.ErrNothingCached) {
		t.Fatalf("expected ErrNothingCached, got %v", err)
	}
}

func TestBuildImageFromSession(t *testing.T) {
	f := newFixture(t, testsupport.WithGeometry(2, 1))
	f.sess = testsupport.NewSession(t, f.store, f.cfg, "build")
	ctx := context.Background()

	decoder, err := f.sess.Settings.Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	track, err := decoder.Decode(1, goodTrack())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := f.store.RecordTrack(ctx, f.sess.ID, session.TrackRecord{
		Physical: 1, Cylinder: 0, Head: 1, Status: session.TrackCaptured, Attempts: 1, Track: track,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	out := filepath.Join(t.TempDir(), "one.scp")
	n, err := capture.BuildImage(ctx, f.store, f.sess, nil, out)
	if err != nil {
		t.Fatalf("build image: %v", err)
	}
	img := parseImage(t, out)
	if n <= 0 || img.Offsets[0] != 0 || img.Offsets[1] == 0 {
		t.Fatalf("unexpected image layout: n=%d offsets=%v", n, img.Offsets)
	}
}
