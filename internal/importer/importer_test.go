package importer

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
	"photodex/internal/media"
	"photodex/internal/scanner"
)

type testStack struct {
	db         *database.Database
	importer   *Importer
	catID      int64
	staging    string
	photoRoot  string
	failedRoot string
}

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

	deriv := media.NewGenerator(filepath.Join(dir, "derivs"))
	geo := geocode.NewResolver(geocode.Config{Enabled: false}, db)
	pipeline := scanner.NewPipeline(db, catalog.NewCataloger(db), deriv, geo)
	sc := scanner.New(pipeline, nil)

	s := &testStack{
		db:         db,
		importer:   New(sc, pipeline),
		catID:      catID,
		staging:    filepath.Join(dir, "staging"),
		photoRoot:  filepath.Join(dir, "photos"),
		failedRoot: filepath.Join(dir, "failed"),
	}
	for _, d := range []string{s.staging, s.photoRoot, s.failedRoot} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func writeTestJPEG(t *testing.T, path string, seed uint8) []byte {
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
	data, _ := os.ReadFile(path)
	return data
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return files
}

func TestImportMovesAndIndexes(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	src := filepath.Join(s.staging, "vacation.jpg")
	writeTestJPEG(t, src, 1)
	taken := time.Date(2023, 6, 15, 12, 0, 0, 0, time.Local)
	if err := os.Chtimes(src, taken, taken); err != nil {
		t.Fatal(err)
	}

	res, err := s.importer.Import(ctx, s.catID, s.staging, s.photoRoot, s.failedRoot)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Processed != 1 || res.Moved != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want 1 processed, 1 moved", res)
	}

	// The capture date (mtime fallback here) picks the library directory.
	want := filepath.Join(s.photoRoot, "2023", "06", "15", "vacation.jpg")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("imported file not at %s: %v", want, err)
	}
	if files := listFiles(t, s.staging); len(files) != 0 {
		t.Errorf("staging not empty after import: %v", files)
	}

	n, err := s.db.CountPhotos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountPhotos() = %d, want 1", n)
	}
}

func TestImportDuplicateContent(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	data := writeTestJPEG(t, filepath.Join(s.staging, "first.jpg"), 7)
	if err := os.WriteFile(filepath.Join(s.staging, "second.jpg"), data, 0644); err != nil {
		t.Fatal(err)
	}

	res, err := s.importer.Import(ctx, s.catID, s.staging, s.photoRoot, s.failedRoot)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Moved != 1 || res.Duplicates != 1 {
		t.Errorf("result = %+v, want 1 moved, 1 duplicate", res)
	}
	if files := listFiles(t, s.staging); len(files) != 0 {
		t.Errorf("staging not empty after import: %v", files)
	}
	// Exactly one record despite two files.
	n, _ := s.db.CountPhotos(ctx)
	if n != 1 {
		t.Errorf("CountPhotos() = %d, want 1", n)
	}
}

func TestImportQuarantinesCorruptFile(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(s.staging, "broken.jpg"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := s.importer.Import(ctx, s.catID, s.staging, s.photoRoot, s.failedRoot)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Failed != 1 || res.Moved != 0 {
		t.Errorf("result = %+v, want 1 failed", res)
	}

	// Original filename survives in quarantine.
	if _, err := os.Stat(filepath.Join(s.failedRoot, "broken.jpg")); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
	if files := listFiles(t, s.staging); len(files) != 0 {
		t.Errorf("staging not empty after import: %v", files)
	}
	if files := listFiles(t, s.photoRoot); len(files) != 0 {
		t.Errorf("failed file left in library: %v", files)
	}
	// Rollback removed the partial record.
	n, _ := s.db.CountPhotos(ctx)
	if n != 0 {
		t.Errorf("CountPhotos() = %d, want 0 after rollback", n)
	}
	if _, err := s.db.GetPhotoByGUID(ctx, "anything"); !errors.Is(err, database.ErrNoRow) {
		t.Errorf("unexpected lookup error: %v", err)
	}
}

func TestImportQuarantinesUnrecognizedFile(t *testing.T) {
	s := newTestStack(t)

	if err := os.WriteFile(filepath.Join(s.staging, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := s.importer.Import(context.Background(), s.catID, s.staging, s.photoRoot, s.failedRoot)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", res)
	}
	if _, err := os.Stat(filepath.Join(s.failedRoot, "notes.txt")); err != nil {
		t.Errorf("unrecognized file not quarantined: %v", err)
	}
}

func TestSafeMoveCollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "dest")

	var moved []string
	for i := 0; i < 3; i++ {
		src := filepath.Join(dir, "src.jpg")
		if err := os.WriteFile(src, []byte{byte(i)}, 0644); err != nil {
			t.Fatal(err)
		}
		dest, err := safeMove(src, destDir, "photo.jpg")
		if err != nil {
			t.Fatalf("safeMove() #%d error = %v", i, err)
		}
		moved = append(moved, filepath.Base(dest))
	}

	want := []string{"photo.jpg", "photo__1.jpg", "photo__2.jpg"}
	for i := range want {
		if moved[i] != want[i] {
			t.Errorf("move #%d landed at %q, want %q", i, moved[i], want[i])
		}
	}
}

func TestCopyFilePreservesModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dest := filepath.Join(dir, "dest.jpg")
	if err := os.WriteFile(src, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	taken := time.Date(2019, 3, 9, 8, 30, 0, 0, time.Local)
	if err := os.Chtimes(src, taken, taken); err != nil {
		t.Fatal(err)
	}

	if err := copyFile(src, dest); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}

	// The mtime stands in for the capture date on files without EXIF, so
	// the copy fallback must not reset it to the copy time.
	fi, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !fi.ModTime().Equal(taken) {
		t.Errorf("dest mtime = %v, want %v", fi.ModTime(), taken)
	}

	meta, err := catalog.ExtractMetadata(dest)
	if err != nil {
		t.Fatalf("ExtractMetadata() error = %v", err)
	}
	if !meta.TakenAt.Equal(taken) {
		t.Errorf("TakenAt = %v, want %v", meta.TakenAt, taken)
	}
}

func TestImportSkipsNestedQuarantine(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// Quarantine directory nested inside staging must not be re-imported.
	nested := filepath.Join(s.staging, "failed")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	writeTestJPEG(t, filepath.Join(nested, "old-failure.jpg"), 3)
	writeTestJPEG(t, filepath.Join(s.staging, "new.jpg"), 4)

	res, err := s.importer.Import(ctx, s.catID, s.staging, s.photoRoot, nested)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Processed != 1 || res.Moved != 1 {
		t.Errorf("result = %+v, want exactly the new file processed", res)
	}
	if _, err := os.Stat(filepath.Join(nested, "old-failure.jpg")); err != nil {
		t.Errorf("quarantined file was disturbed: %v", err)
	}
}
