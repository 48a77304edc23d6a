package jobs

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photodex/internal/catalog"
	"photodex/internal/database"
	"photodex/internal/geocode"
	"photodex/internal/importer"
	"photodex/internal/media"
	"photodex/internal/scanner"
)

type testStack struct {
	db       *database.Database
	runner   *Runner
	pipeline *scanner.Pipeline
	deriv    *media.Generator
	catID    int64
	roots    Roots
}

// newTestStack builds the full pipeline behind a runner. The runner is
// not started; tests that execute jobs call Start themselves.
func newTestStack(t *testing.T) *testStack {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.New(ctx, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	catID, err := db.EnsureCatalog(ctx, "master", "library")
	if err != nil {
		t.Fatalf("EnsureCatalog() error = %v", err)
	}

	roots := Roots{
		PhotoRoot:  filepath.Join(dir, "photos"),
		ImportRoot: filepath.Join(dir, "staging"),
		FailedRoot: filepath.Join(dir, "failed"),
	}
	for _, d := range []string{roots.PhotoRoot, roots.ImportRoot, roots.FailedRoot} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	deriv := media.NewGenerator(filepath.Join(dir, "derivs"))
	geo := geocode.NewResolver(geocode.Config{Enabled: false}, db)
	pipeline := scanner.NewPipeline(db, catalog.NewCataloger(db), deriv, geo)
	sc := scanner.New(pipeline, nil)
	im := importer.New(sc, pipeline)

	return &testStack{
		db:       db,
		runner:   NewRunner(db, sc, im, deriv, roots, 2),
		pipeline: pipeline,
		deriv:    deriv,
		catID:    catID,
		roots:    roots,
	}
}

func writeTestJPEG(t *testing.T, path string, seed uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x * 8), B: uint8(y * 8), A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatal(err)
	}
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(t *testing.T, r *Runner, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		s, err := r.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status(%s) error = %v", id, err)
		}
		if s.Status == StatusCompleted || s.Status == StatusError {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return Snapshot{}
}

func TestScanJobLifecycle(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	root := t.TempDir()
	writeTestJPEG(t, filepath.Join(root, "a.jpg"), 1)
	writeTestJPEG(t, filepath.Join(root, "b.jpg"), 2)

	s.runner.Start(ctx)
	defer s.runner.Stop()

	id, err := s.runner.SubmitScan(ctx, s.catID, root)
	if err != nil {
		t.Fatalf("SubmitScan() error = %v", err)
	}

	snap := waitForJob(t, s.runner, id)
	if snap.Status != StatusCompleted {
		t.Fatalf("job status = %s, error = %q", snap.Status, snap.Error)
	}
	if snap.Counters.Indexed != 2 || snap.Counters.Processed != 2 {
		t.Errorf("counters = %+v, want 2 processed, 2 indexed", snap.Counters)
	}
	if snap.CompletedAt.IsZero() {
		t.Error("completed job has zero CompletedAt")
	}

	// Terminal state is persisted.
	rec, err := s.db.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if rec.Status != string(StatusCompleted) || rec.Indexed != 2 {
		t.Errorf("persisted record = %+v", rec)
	}

	// The lock is free again after completion.
	id2, err := s.runner.SubmitScan(ctx, s.catID, root)
	if err != nil {
		t.Fatalf("SubmitScan() after completion error = %v", err)
	}
	waitForJob(t, s.runner, id2)
}

func TestScanJobMissingRootIsError(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	s.runner.Start(ctx)
	defer s.runner.Stop()

	id, err := s.runner.SubmitScan(ctx, s.catID, filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("SubmitScan() error = %v", err)
	}
	snap := waitForJob(t, s.runner, id)
	if snap.Status != StatusError {
		t.Errorf("job status = %s, want error", snap.Status)
	}
	if snap.Error == "" {
		t.Error("error job has empty Error")
	}
}

func TestStatusNotFound(t *testing.T) {
	s := newTestStack(t)
	if _, err := s.runner.Status(context.Background(), "no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status() error = %v, want ErrNotFound", err)
	}
}

func TestCatalogBusy(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// The runner is not started, so the first job stays pending and holds
	// the catalog lock.
	root := t.TempDir()
	if _, err := s.runner.SubmitScan(ctx, s.catID, root); err != nil {
		t.Fatalf("first SubmitScan() error = %v", err)
	}

	if _, err := s.runner.SubmitScan(ctx, s.catID, root); !errors.Is(err, ErrCatalogBusy) {
		t.Errorf("second SubmitScan() error = %v, want ErrCatalogBusy", err)
	}
	if _, err := s.runner.SubmitImport(ctx, s.catID); !errors.Is(err, ErrCatalogBusy) {
		t.Errorf("SubmitImport() on busy catalog error = %v, want ErrCatalogBusy", err)
	}

	// A different catalog is unaffected.
	otherID, err := s.db.EnsureCatalog(ctx, "secondary", "library")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.runner.SubmitScan(ctx, otherID, root); err != nil {
		t.Errorf("SubmitScan() on free catalog error = %v", err)
	}
}

func TestImportJob(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	writeTestJPEG(t, filepath.Join(s.roots.ImportRoot, "new.jpg"), 9)

	s.runner.Start(ctx)
	defer s.runner.Stop()

	id, err := s.runner.SubmitImport(ctx, s.catID)
	if err != nil {
		t.Fatalf("SubmitImport() error = %v", err)
	}
	snap := waitForJob(t, s.runner, id)
	if snap.Status != StatusCompleted {
		t.Fatalf("job status = %s, error = %q", snap.Status, snap.Error)
	}
	if snap.Counters.Indexed != 1 {
		t.Errorf("counters = %+v, want 1 indexed", snap.Counters)
	}

	entries, err := os.ReadDir(s.roots.ImportRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging not empty after import job: %v", entries)
	}
}

func TestDeleteJob(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// Catalog one photo directly through the pipeline.
	path := filepath.Join(s.roots.PhotoRoot, "victim.jpg")
	writeTestJPEG(t, path, 5)
	outcome, photo, err := s.pipeline.ProcessFile(ctx, s.catID, path)
	if err != nil || outcome != scanner.OutcomeIndexed {
		t.Fatalf("ProcessFile() = %v, %v", outcome, err)
	}

	s.runner.Start(ctx)
	defer s.runner.Stop()

	id, err := s.runner.SubmitDelete(ctx, photo.GUID)
	if err != nil {
		t.Fatalf("SubmitDelete() error = %v", err)
	}
	snap := waitForJob(t, s.runner, id)
	if snap.Status != StatusCompleted {
		t.Fatalf("job status = %s, error = %q", snap.Status, snap.Error)
	}

	if _, err := s.db.GetPhotoByGUID(ctx, photo.GUID); !errors.Is(err, database.ErrNoRow) {
		t.Errorf("photo record survived delete, err = %v", err)
	}
	for _, tier := range media.DefaultTiers {
		if _, err := os.Stat(s.deriv.TierPath(tier.Name, photo.GUID)); !os.IsNotExist(err) {
			t.Errorf("derivative %s survived delete", tier.Name)
		}
	}
}

func TestDeleteJobUnknownGUID(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	s.runner.Start(ctx)
	defer s.runner.Stop()

	id, err := s.runner.SubmitDelete(ctx, "no-such-guid")
	if err != nil {
		t.Fatalf("SubmitDelete() error = %v", err)
	}
	snap := waitForJob(t, s.runner, id)
	if snap.Status != StatusError {
		t.Errorf("job status = %s, want error", snap.Status)
	}
}

func TestJobTransitionsAreMonotonic(t *testing.T) {
	j := &job{id: "j", kind: KindScan, status: StatusPending, createdAt: time.Now()}

	if err := j.transition(StatusCompleted); err == nil {
		t.Error("pending -> completed was allowed")
	}
	if err := j.transition(StatusRunning); err != nil {
		t.Fatalf("pending -> running error = %v", err)
	}
	if err := j.transition(StatusPending); err == nil {
		t.Error("running -> pending was allowed")
	}
	if err := j.transition(StatusCompleted); err != nil {
		t.Fatalf("running -> completed error = %v", err)
	}
	if err := j.transition(StatusRunning); err == nil {
		t.Error("completed -> running was allowed")
	}
	if err := j.transition(StatusError); err == nil {
		t.Error("completed -> error was allowed")
	}
}

func TestSubmitAfterStopIsRejected(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	s.runner.Start(ctx)
	s.runner.Stop()

	// A submission racing shutdown must get a clean rejection, not a
	// panic on the closed queue.
	root := t.TempDir()
	if _, err := s.runner.SubmitScan(ctx, s.catID, root); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("SubmitScan() after Stop error = %v, want ErrQueueFull", err)
	}

	// The rejected submission released its catalog lock: a retry fails
	// the same way, not with ErrCatalogBusy.
	if _, err := s.runner.SubmitScan(ctx, s.catID, root); !errors.Is(err, ErrQueueFull) {
		t.Errorf("retry after Stop error = %v, want ErrQueueFull", err)
	}
}

func TestStatusFallsBackToPersistedRecord(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	root := t.TempDir()
	writeTestJPEG(t, filepath.Join(root, "a.jpg"), 9)

	s.runner.Start(ctx)
	id, err := s.runner.SubmitScan(ctx, s.catID, root)
	if err != nil {
		t.Fatalf("SubmitScan() error = %v", err)
	}
	waitForJob(t, s.runner, id)
	s.runner.Stop()

	// A fresh runner over the same store stands in for a restarted
	// process; the job is no longer in memory.
	restarted := NewRunner(s.db, nil, nil, s.deriv, s.roots, 1)
	snap, err := restarted.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status() after restart error = %v", err)
	}
	if snap.Status != StatusCompleted || snap.Kind != KindScan {
		t.Errorf("snapshot = %+v, want completed scan", snap)
	}
	if snap.Counters.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", snap.Counters.Indexed)
	}
	if snap.CompletedAt.IsZero() {
		t.Error("restored job has zero CompletedAt")
	}

	if _, err := restarted.Status(ctx, "no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status() for unknown id error = %v, want ErrNotFound", err)
	}
}
