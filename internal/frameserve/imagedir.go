package frameserve

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// decodable are the image types the standard decoders handle.
var decodable = []string{"image/png", "image/jpeg", "image/gif"}

// ImageDirConfig describes a directory of still images.
type ImageDirConfig struct {
	Dir string `json:"dir"`
	// Pattern filters files by their path relative to Dir.
	Pattern string `json:"pattern"`
	Format  string `json:"color"`
	Loop    bool   `json:"loop"`
}

// ImageDir serves every image below a directory in path order.
type ImageDir struct {
	files  []string
	format sample.PixelFormat
	loop   bool
	log    *zap.Logger
	next   int
}

// NewImageDir walks cfg.Dir and keeps the files whose content sniffs as
// a decodable image. It fails when there are none.
func NewImageDir(cfg ImageDirConfig, logger *zap.Logger) (*ImageDir, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	format, err := sample.ParsePixelFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid image pattern %q", pattern)
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, cfg.Dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(cfg.Dir, p)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); !ok {
			return nil
		}
		mtype, err := mimetype.DetectFile(p)
		if err != nil || !mimetype.EqualsAny(mtype.String(), decodable...) {
			return nil
		}
		mu.Lock()
		files = append(files, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", cfg.Dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no png, jpeg or gif images below %s", cfg.Dir)
	}
	sort.Strings(files)

	logger.Info("Image directory loaded", zap.String("dir", cfg.Dir), zap.Int("images", len(files)))
	return &ImageDir{files: files, format: format, loop: cfg.Loop, log: logger}, nil
}

// Files returns the images in serving order.
func (d *ImageDir) Files() []string { return d.files }

// Next implements Producer. Images that fail to decode are skipped.
func (d *ImageDir) Next() (sample.Frame, error) {
	for attempts := 0; attempts < len(d.files); attempts++ {
		if d.next == len(d.files) {
			if !d.loop {
				return sample.Frame{}, dataflow.ErrEndOfStream
			}
			d.next = 0
		}
		path := d.files[d.next]
		d.next++

		img, err := decode(path)
		if err != nil {
			d.log.Warn("Skipping image", zap.String("path", path), zap.Error(err))
			continue
		}
		return sample.FromImage(img, d.format), nil
	}
	return sample.Frame{}, dataflow.ErrEndOfStream
}

// Close implements Producer.
func (d *ImageDir) Close() error { return nil }

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
