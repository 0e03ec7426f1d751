package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"photomosaic/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support
)

// ErrUnsupportedFormat is returned when an output path has an extension the
// encoder cannot write.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decode decodes an in-memory image in any registered format, applying EXIF
// orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	logging.Debug("Opened %s: %dx%d", filepath.Base(path), img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// ResizeNearest resizes img to exactly width x height using nearest-neighbor
// sampling.
func ResizeNearest(img image.Image, width, height int) *image.NRGBA {
	if b := img.Bounds(); b.Dx() == width && b.Dy() == height {
		return ToNRGBA(img)
	}
	return imaging.Resize(img, width, height, imaging.NearestNeighbor)
}

// OutputFormat resolves the encoder for path from its extension.
func OutputFormat(path string) (imaging.Format, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return format, nil
}

// Save encodes img to path in the format implied by its extension. The image
// is written to a temporary file in the destination directory and renamed
// into place, so a failed save never leaves a truncated file at path.
func Save(img image.Image, path string) (err error) {
	format, err := OutputFormat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".mosaic-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logging.Warn("failed to remove temp file %s: %v", tmp.Name(), rmErr)
			}
		}
	}()

	if err = imaging.Encode(tmp, img, format, imaging.JPEGQuality(95)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// Dimensions reads the pixel size of the image at path from its header,
// without decoding the pixel data. EXIF orientation is not applied.
func Dimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if errors.Is(err, image.ErrFormat) {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
