package storage

import (
	"image"
	"io"
	"os"
	"path/filepath"

	// Registered image formats for header probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/r0gig0r/double-take/config"
)

// MatchesPrefix is the media-store namespace holding match snapshots.
const MatchesPrefix = "matches"

// MediaStore resolves match snapshot files for probing and serving.
type MediaStore interface {
	Exists(filename string) bool
	Open(filename string) (io.ReadCloser, error)
	Path(filename string) string
	Dimensions(filename string) (width, height int)
}

// DiskStore implements MediaStore on the local filesystem.
type DiskStore struct {
	root string
}

// NewDiskStore creates a media store rooted at the configured path.
func NewDiskStore(cfg config.MediaConfig) *DiskStore {
	return &DiskStore{root: cfg.Path}
}

// Path resolves a match filename to its absolute location. The filename
// is reduced to its base name so requests cannot escape the namespace.
func (s *DiskStore) Path(filename string) string {
	return filepath.Join(s.root, MatchesPrefix, filepath.Base(filename))
}

// Exists reports whether the snapshot file is present on disk.
func (s *DiskStore) Exists(filename string) bool {
	info, err := os.Stat(s.Path(filename))
	return err == nil && !info.IsDir()
}

// Open opens the snapshot file for reading.
func (s *DiskStore) Open(filename string) (io.ReadCloser, error) {
	return os.Open(s.Path(filename))
}

// Dimensions probes the image header for its pixel dimensions. Any
// failure (missing file, corrupt header, I/O error) degrades to (0, 0);
// a broken snapshot must not fail the listing that references it.
func (s *DiskStore) Dimensions(filename string) (int, int) {
	f, err := s.Open(filename)
	if err != nil {
		log.Debugf("Cannot open %s/%s for probing: %v", MatchesPrefix, filename, err)
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		log.Debugf("Cannot decode image header of %s/%s: %v", MatchesPrefix, filename, err)
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
