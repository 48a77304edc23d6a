package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photodex/internal/logging"
)

// DefaultExtensions are the image extensions recognized when the
// configuration does not override them.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".webp", ".heic"}

// Result summarizes one scan.
type Result struct {
	Processed  int `json:"processed"`
	Indexed    int `json:"indexed"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Scanner walks a directory tree and feeds every recognized image file
// through the pipeline.
type Scanner struct {
	pipeline *Pipeline
	exts     map[string]bool
}

// New returns a Scanner recognizing the given extensions (lowercase,
// with leading dot). An empty list means DefaultExtensions.
func New(pipeline *Pipeline, extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Scanner{pipeline: pipeline, exts: exts}
}

// Recognizes reports whether the scanner considers path an image file.
func (s *Scanner) Recognizes(path string) bool {
	return s.exts[strings.ToLower(filepath.Ext(path))]
}

// Scan walks root in directory order and processes every recognized
// file. Per-file failures are counted and do not stop the walk; only a
// root that cannot be walked at all fails the scan.
func (s *Scanner) Scan(ctx context.Context, catalogID int64, root string) (Result, error) {
	start := time.Now()
	var res Result

	if fi, err := os.Stat(root); err != nil {
		return res, fmt.Errorf("scan root %s: %w", root, err)
	} else if !fi.IsDir() {
		return res, fmt.Errorf("scan root %s is not a directory", root)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Skipping unreadable entry %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !s.Recognizes(path) {
			return nil
		}

		res.Processed++
		outcome, _, perr := s.pipeline.ProcessFile(ctx, catalogID, path)
		switch outcome {
		case OutcomeIndexed:
			res.Indexed++
		case OutcomeDuplicate:
			res.Duplicates++
		case OutcomeFailed:
			res.Failed++
			logging.Warn("Failed to process %s: %v", path, perr)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan of %s failed: %w", root, err)
	}

	logging.Info("Scan of %s finished in %v: %d processed, %d indexed, %d duplicates, %d failed",
		root, time.Since(start), res.Processed, res.Indexed, res.Duplicates, res.Failed)
	return res, nil
}
