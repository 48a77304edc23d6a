package media

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP source decoding

	"photodex/internal/logging"
	"photodex/internal/metrics"
)

// Tier is one derivative size class.
type Tier struct {
	Name    string
	MaxPx   int
	Quality int
}

// DefaultTiers are the derivative sizes generated for every photo:
// a grid thumbnail, a mid-size preview, and a large view.
var DefaultTiers = []Tier{
	{Name: "tm", MaxPx: 256, Quality: 80},
	{Name: "md", MaxPx: 1024, Quality: 85},
	{Name: "lg", MaxPx: 2048, Quality: 85},
}

// DerivativeError reports a failure to generate one derivative file.
type DerivativeError struct {
	Path string
	Err  error
}

func (e *DerivativeError) Error() string {
	return fmt.Sprintf("derivative %s: %v", e.Path, e.Err)
}

func (e *DerivativeError) Unwrap() error { return e.Err }

// Generator renders resized JPEG derivatives into a bucketed directory
// tree under its root.
type Generator struct {
	root  string
	tiers []Tier
}

// NewGenerator returns a Generator writing under root with the default
// tier set.
func NewGenerator(root string) *Generator {
	return &Generator{root: root, tiers: DefaultTiers}
}

// TierPath returns the on-disk path for one derivative. Paths are
// bucketed on the first two GUID byte pairs so no directory grows
// unbounded: root/tier/ab/cd/abcd....jpg
func (g *Generator) TierPath(tier, guid string) string {
	return filepath.Join(g.root, tier, guid[0:2], guid[2:4], guid+".jpg")
}

// Generate renders every tier for the source image at srcPath. The image
// is decoded once; EXIF orientation is applied so derivatives are always
// upright. Output is JPEG regardless of the source format. The first
// failing tier aborts the run and already written tiers are cleaned up.
func (g *Generator) Generate(srcPath, guid string) error {
	start := time.Now()

	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues("error").Inc()
		return &DerivativeError{Path: srcPath, Err: err}
	}

	written := make([]string, 0, len(g.tiers))
	for _, tier := range g.tiers {
		dst := g.TierPath(tier.Name, guid)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			g.cleanup(written)
			metrics.DerivativeGenerationsTotal.WithLabelValues("error").Inc()
			return &DerivativeError{Path: dst, Err: err}
		}

		resized := imaging.Fit(src, tier.MaxPx, tier.MaxPx, imaging.Lanczos)
		if err := imaging.Save(resized, dst, imaging.JPEGQuality(tier.Quality)); err != nil {
			g.cleanup(written)
			metrics.DerivativeGenerationsTotal.WithLabelValues("error").Inc()
			return &DerivativeError{Path: dst, Err: err}
		}
		written = append(written, dst)
	}

	metrics.DerivativeGenerationsTotal.WithLabelValues("success").Inc()
	metrics.DerivativeGenerationDuration.Observe(time.Since(start).Seconds())
	logging.Debug("Generated %d derivatives for %s in %v", len(written), guid, time.Since(start))
	return nil
}

// Remove deletes every tier file for a GUID. Missing files are not an
// error, so Remove is safe to call during rollback after a partial
// Generate.
func (g *Generator) Remove(guid string) error {
	var firstErr error
	for _, tier := range g.tiers {
		path := g.TierPath(tier.Name, guid)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
			logging.Warn("Failed to remove derivative %s: %v", path, err)
		}
	}
	return firstErr
}

func (g *Generator) cleanup(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to clean up partial derivative %s: %v", p, err)
		}
	}
}
