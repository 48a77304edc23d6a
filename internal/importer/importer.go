package importer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photodex/internal/catalog"
	"photodex/internal/logging"
	"photodex/internal/metrics"
	"photodex/internal/scanner"
)

// MoveError reports a filesystem move failure during import.
type MoveError struct {
	Src string
	Dst string
	Err error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s -> %s: %v", e.Src, e.Dst, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// Result summarizes one import job.
type Result struct {
	Processed  int `json:"processed"`
	Moved      int `json:"moved"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Importer drains a staging directory: each file is moved into the
// library tree, then run through the ingestion pipeline. A file that
// fails any step is rolled back and quarantined instead. After an import
// no file remains in staging.
type Importer struct {
	scanner  *scanner.Scanner
	pipeline *scanner.Pipeline
}

// New returns an Importer. The scanner supplies extension recognition;
// the pipeline does the per-file processing after the move.
func New(sc *scanner.Scanner, p *scanner.Pipeline) *Importer {
	return &Importer{scanner: sc, pipeline: p}
}

// Import moves every file under stagingRoot into photoRoot and indexes
// it. Files that cannot be moved or processed go to failedRoot with
// their original filename preserved. Dotfiles are ignored. Only a
// staging root that cannot be walked fails the job.
func (im *Importer) Import(ctx context.Context, catalogID int64, stagingRoot, photoRoot, failedRoot string) (Result, error) {
	start := time.Now()
	var res Result

	if fi, err := os.Stat(stagingRoot); err != nil {
		return res, fmt.Errorf("staging root %s: %w", stagingRoot, err)
	} else if !fi.IsDir() {
		return res, fmt.Errorf("staging root %s is not a directory", stagingRoot)
	}

	err := filepath.WalkDir(stagingRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == stagingRoot {
				return err
			}
			logging.Warn("Skipping unreadable staging entry %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			// The quarantine may live under staging; never re-import it.
			if path != stagingRoot && (samePath(path, failedRoot) || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		res.Processed++
		im.importFile(ctx, catalogID, path, photoRoot, failedRoot, &res)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("import from %s failed: %w", stagingRoot, err)
	}

	logging.Info("Import from %s finished in %v: %d processed, %d moved, %d duplicates, %d failed",
		stagingRoot, time.Since(start), res.Processed, res.Moved, res.Duplicates, res.Failed)
	return res, nil
}

// importFile moves one staged file into the library and processes it.
// Every failure path ends with the file in quarantine and the counters
// updated; nothing is left in staging.
func (im *Importer) importFile(ctx context.Context, catalogID int64, src, photoRoot, failedRoot string, res *Result) {
	name := filepath.Base(src)

	if !im.scanner.Recognizes(src) {
		logging.Warn("Quarantining %s: unrecognized file type", src)
		im.quarantine(src, failedRoot, res)
		return
	}

	// The capture date decides the library directory, so metadata is read
	// before the move.
	meta, err := catalog.ExtractMetadata(src)
	if err != nil {
		logging.Warn("Quarantining %s: unreadable: %v", src, err)
		im.quarantine(src, failedRoot, res)
		return
	}

	destDir := filepath.Join(photoRoot, meta.TakenAt.Format("2006/01/02"))
	dest, err := safeMove(src, destDir, name)
	if err != nil {
		logging.Warn("Quarantining %s: %v", src, err)
		im.quarantine(src, failedRoot, res)
		return
	}
	metrics.ImportMovesTotal.WithLabelValues("library").Inc()

	outcome, photo, perr := im.pipeline.ProcessFile(ctx, catalogID, dest)
	switch outcome {
	case scanner.OutcomeIndexed:
		res.Moved++
	case scanner.OutcomeDuplicate:
		// The content is already cataloged under its first location; the
		// moved copy stays in the library but gets no second record.
		res.Duplicates++
	case scanner.OutcomeFailed:
		logging.Warn("Rolling back %s: %v", dest, perr)
		im.pipeline.Rollback(ctx, photo)
		im.quarantine(dest, failedRoot, res)
	}
}

// quarantine moves a file into failedRoot, preserving its original
// filename. If even that move fails the file stays where it is and the
// failure is still counted.
func (im *Importer) quarantine(src, failedRoot string, res *Result) {
	res.Failed++
	if _, err := safeMove(src, failedRoot, filepath.Base(src)); err != nil {
		logging.Error("Failed to quarantine %s: %v", src, err)
		return
	}
	metrics.ImportMovesTotal.WithLabelValues("quarantine").Inc()
}

// safeMove moves src into destDir under name, never overwriting: on
// collision the name gets a numeric suffix (photo.jpg, photo__1.jpg,
// photo__2.jpg, ...). Falls back to copy+remove when src and destDir are
// on different filesystems.
func safeMove(src, destDir, name string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", &MoveError{Src: src, Dst: destDir, Err: err}
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	dest := filepath.Join(destDir, name)
	for n := 1; ; n++ {
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s__%d%s", stem, n, ext))
	}

	if err := os.Rename(src, dest); err != nil {
		// Cross-device moves need a copy.
		if copyErr := copyFile(src, dest); copyErr != nil {
			return "", &MoveError{Src: src, Dst: dest, Err: err}
		}
		if err := os.Remove(src); err != nil {
			return "", &MoveError{Src: src, Dst: dest, Err: err}
		}
	}
	return dest, nil
}

// copyFile copies src to dest and carries over the source's modification
// time, which stands in for the capture date on files without EXIF.
func copyFile(src, dest string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, time.Now(), fi.ModTime())
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
