// Package labelio reads and writes label images: 2-D PNG and TIFF files and
// N-dimensional raw volumes described by a YAML header.
package labelio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"golang.org/x/image/tiff"
)

var (
	// ErrUnsupportedFormat is returned for file extensions labelio cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported label image format")
	// ErrLabelRange is returned when a label does not fit the output pixel type.
	ErrLabelRange = errors.New("label out of range for output format")
	// ErrNotPlanar is returned when a 2-D format is asked to store another dimension.
	ErrNotPlanar = errors.New("image formats store 2-D label images only")
)

// Format identifies a label file format by extension.
type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
	FormatRaw  Format = "raw"
)

// DetectFormat derives the format from a file name. Raw volumes are
// addressed through their .yaml/.yml header.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".yaml", ".yml":
		return FormatRaw, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Read loads a label image of any supported format.
func Read(path string) (*volume.Labels, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatRaw {
		return ReadVolume(path)
	}
	return ReadImage(path)
}

// Write stores a label image, choosing the format from the file name.
func Write(path string, l *volume.Labels) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	if format == FormatRaw {
		return WriteVolume(path, l, DTypeForLabels(l))
	}
	return WriteImage(path, l)
}

// ReadImage decodes a PNG or TIFF file into a 2-D label image. Gray and
// paletted pixels are used as label values directly; other color models are
// converted to 16-bit gray.
func ReadImage(path string) (*volume.Labels, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label image %s: %w", path, err)
	}
	defer file.Close()

	var img image.Image
	switch format {
	case FormatPNG:
		img, err = png.Decode(file)
	case FormatTIFF:
		img, err = tiff.Decode(file)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode label image %s: %w", path, err)
	}

	return FromImage(img), nil
}

// FromImage converts a decoded image into a 2-D label image with axis 0
// along x and axis 1 along y.
func FromImage(img image.Image) *volume.Labels {
	b := img.Bounds()
	l := volume.MustLabels(volume.Shape{b.Dx(), b.Dy()})

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint32
			switch src := img.(type) {
			case *image.Gray:
				v = uint32(src.GrayAt(x, y).Y)
			case *image.Gray16:
				v = uint32(src.Gray16At(x, y).Y)
			case *image.Paletted:
				v = uint32(src.ColorIndexAt(x, y))
			default:
				v = uint32(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
			}
			l.Data[(y-b.Min.Y)*b.Dx()+(x-b.Min.X)] = v
		}
	}
	return l
}

// ToImage converts a 2-D label image to 16-bit gray.
func ToImage(l *volume.Labels) (*image.Gray16, error) {
	if len(l.Shape) != 2 {
		return nil, fmt.Errorf("%w: shape %s", ErrNotPlanar, l.Shape)
	}
	w, h := l.Shape[0], l.Shape[1]
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := l.Data[y*w+x]
			if v > 0xffff {
				return nil, fmt.Errorf("%w: label %d at (%d,%d)", ErrLabelRange, v, x, y)
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img, nil
}

// WriteImage encodes a 2-D label image as 16-bit gray PNG or TIFF.
func WriteImage(path string, l *volume.Labels) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	img, err := ToImage(l)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	switch format {
	case FormatPNG:
		err = png.Encode(file, img)
	case FormatTIFF:
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
