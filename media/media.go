// Package media turns generated or uploaded images into web-sized JPEGs and
// stores them under a public URL.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"github.com/eringen/leadpress/content"
)

const (
	MaxImageWidth = 800
	JPEGQuality   = 80
	MaxUploadSize = 10 << 20 // 10MB
)

var (
	// ErrInvalidImage is returned when the input cannot be decoded.
	ErrInvalidImage = errors.New("media: invalid image")
	// ErrTooLarge is returned for inputs above MaxUploadSize.
	ErrTooLarge = errors.New("media: image too large")
)

// Image describes a processed image.
type Image struct {
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
	URL      string `json:"url"`
}

// Process decodes an image from src, resizes it to MaxImageWidth when
// wider, and encodes it as JPEG.
func Process(src io.Reader, originalName string) (Image, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > MaxImageWidth {
		newH := h * MaxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, MaxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = MaxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return Image{
		Filename: slugifyFilename(originalName) + ".jpg",
		Width:    w,
		Height:   h,
		Size:     buf.Len(),
	}, buf.Bytes(), nil
}

func slugifyFilename(name string) string {
	base := content.Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "image"
	}
	return base
}

// LocalStore keeps images in a directory served at baseURL.
type LocalStore struct {
	mu      sync.Mutex
	dir     string
	baseURL string
}

// NewLocalStore stores files in dir and links them under baseURL.
func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Dir returns the directory images are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload processes raw and stores it under a unique name derived from name.
func (s *LocalStore) Upload(ctx context.Context, name string, raw []byte) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if len(raw) > MaxUploadSize {
		return Image{}, fmt.Errorf("%w (%d bytes)", ErrTooLarge, len(raw))
	}
	img, data, err := Process(bytes.NewReader(raw), name)
	if err != nil {
		return Image{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("create media dir: %w", err)
	}
	img.Filename = s.uniqueFilename(img.Filename)
	if err := os.WriteFile(filepath.Join(s.dir, img.Filename), data, 0o644); err != nil {
		return Image{}, fmt.Errorf("write image: %w", err)
	}
	img.URL = s.baseURL + "/" + img.Filename
	return img, nil
}

// uniqueFilename appends a counter while filename exists in the directory.
func (s *LocalStore) uniqueFilename(filename string) string {
	base := strings.TrimSuffix(filename, ".jpg")
	candidate := filename
	for counter := 2; ; counter++ {
		if _, err := os.Stat(filepath.Join(s.dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
	}
}
