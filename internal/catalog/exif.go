package catalog

import (
	"image"
	_ "image/gif"  // GIF dimension decoding
	_ "image/jpeg" // JPEG dimension decoding
	_ "image/png"  // PNG dimension decoding
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP dimension decoding

	"photodex/internal/logging"
)

// Metadata is what the cataloger extracts from a photo file. Fields that
// the file does not carry are left at their zero value, except TakenAt
// which always holds a usable timestamp.
type Metadata struct {
	TakenAt    time.Time
	Lat        *float64
	Lon        *float64
	CameraMake string
	Width      int
	Height     int
}

// ExtractMetadata reads EXIF tags and pixel dimensions from the file at
// path. Missing or unparseable EXIF data is not an error; the file's
// modification time stands in for the capture time. Only a completely
// unreadable file fails.
func ExtractMetadata(path string) (*Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	m := &Metadata{TakenAt: fi.ModTime()}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if x, err := exif.Decode(f); err == nil {
		if taken, err := x.DateTime(); err == nil {
			m.TakenAt = taken
		}
		if lat, lon, err := x.LatLong(); err == nil {
			m.Lat = &lat
			m.Lon = &lon
		}
		if tag, err := x.Get(exif.Make); err == nil {
			if make, err := tag.StringVal(); err == nil {
				m.CameraMake = make
			}
		}
	} else {
		logging.Debug("No EXIF data in %s: %v", path, err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	if cfg, _, err := image.DecodeConfig(f); err == nil {
		m.Width = cfg.Width
		m.Height = cfg.Height
	} else {
		logging.Debug("Could not read dimensions of %s: %v", path, err)
	}

	return m, nil
}
