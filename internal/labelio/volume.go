package labelio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"gopkg.in/yaml.v3"
)

// ErrInvalidHeader is returned for malformed raw volume headers.
var ErrInvalidHeader = errors.New("invalid volume header")

// DType is the element type of a raw volume file.
type DType string

const (
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Uint32  DType = "uint32"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

func (d DType) size() int {
	switch d {
	case Uint8:
		return 1
	case Uint16:
		return 2
	case Uint32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Header describes a raw little-endian volume. Shape[0] varies fastest.
type Header struct {
	Shape   []int     `yaml:"shape"`
	Spacing []float64 `yaml:"spacing,omitempty"`
	DType   DType     `yaml:"dtype"`
	Data    string    `yaml:"data"`
}

// Validate checks the header for consistency.
func (h Header) Validate() error {
	if err := volume.Shape(h.Shape).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.DType.size() == 0 {
		return fmt.Errorf("%w: unknown dtype %q", ErrInvalidHeader, h.DType)
	}
	if h.Spacing != nil && len(h.Spacing) != len(h.Shape) {
		return fmt.Errorf("%w: %d spacing values for %d axes", ErrInvalidHeader, len(h.Spacing), len(h.Shape))
	}
	if h.Data == "" {
		return fmt.Errorf("%w: missing data file", ErrInvalidHeader)
	}
	return nil
}

// ReadHeader parses a volume header file.
func ReadHeader(path string) (Header, error) {
	var h Header
	raw, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("failed to read header %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &h); err != nil {
		return h, fmt.Errorf("%w: %s: %v", ErrInvalidHeader, path, err)
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}

// DTypeForLabels returns the smallest unsigned type holding every label.
func DTypeForLabels(l *volume.Labels) DType {
	var maxLabel uint32
	for _, v := range l.Data {
		if v > maxLabel {
			maxLabel = v
		}
	}
	switch {
	case maxLabel <= math.MaxUint8:
		return Uint8
	case maxLabel <= math.MaxUint16:
		return Uint16
	}
	return Uint32
}

// ReadVolume loads a label volume from its header file.
func ReadVolume(path string) (*volume.Labels, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	if h.DType == Float32 || h.DType == Float64 {
		return nil, fmt.Errorf("%w: label volumes need an unsigned dtype, got %s", ErrInvalidHeader, h.DType)
	}

	l, err := volume.NewLabels(volume.Shape(h.Shape))
	if err != nil {
		return nil, err
	}
	if h.Spacing != nil {
		copy(l.Spacing, h.Spacing)
	}

	err = readData(path, h, func(r io.Reader) error {
		buf := make([]byte, h.DType.size())
		for i := range l.Data {
			if _, err := io.ReadFull(r, buf); err != nil {
				return err
			}
			switch h.DType {
			case Uint8:
				l.Data[i] = uint32(buf[0])
			case Uint16:
				l.Data[i] = uint32(binary.LittleEndian.Uint16(buf))
			default:
				l.Data[i] = binary.LittleEndian.Uint32(buf)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ReadFloatVolume loads a real-valued volume, such as a radius map.
func ReadFloatVolume(path string) (*volume.Float, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}

	f, err := volume.NewFloat(volume.Shape(h.Shape))
	if err != nil {
		return nil, err
	}

	err = readData(path, h, func(r io.Reader) error {
		buf := make([]byte, h.DType.size())
		for i := range f.Data {
			if _, err := io.ReadFull(r, buf); err != nil {
				return err
			}
			switch h.DType {
			case Uint8:
				f.Data[i] = float64(buf[0])
			case Uint16:
				f.Data[i] = float64(binary.LittleEndian.Uint16(buf))
			case Uint32:
				f.Data[i] = float64(binary.LittleEndian.Uint32(buf))
			case Float32:
				f.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
			case Float64:
				f.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// WriteVolume stores l as a raw volume: a header at path and the data next
// to it with the header's base name and a .raw extension.
func WriteVolume(path string, l *volume.Labels, dtype DType) error {
	if dtype == Float32 || dtype == Float64 || dtype.size() == 0 {
		return fmt.Errorf("%w: cannot store labels as %q", ErrInvalidHeader, dtype)
	}
	limit := uint64(1)<<(8*dtype.size()) - 1
	for i, v := range l.Data {
		if uint64(v) > limit {
			return fmt.Errorf("%w: label %d at %v does not fit %s", ErrLabelRange, v, l.Shape.Index(i), dtype)
		}
	}

	h := Header{
		Shape:   append([]int(nil), l.Shape...),
		Spacing: append([]float64(nil), l.Spacing...),
		DType:   dtype,
		Data:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".raw",
	}

	return writeVolume(path, h, func(w io.Writer) error {
		buf := make([]byte, dtype.size())
		for _, v := range l.Data {
			switch dtype {
			case Uint8:
				buf[0] = uint8(v)
			case Uint16:
				binary.LittleEndian.PutUint16(buf, uint16(v))
			default:
				binary.LittleEndian.PutUint32(buf, v)
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteFloatVolume stores a real-valued volume as float64.
func WriteFloatVolume(path string, f *volume.Float) error {
	h := Header{
		Shape: append([]int(nil), f.Shape...),
		DType: Float64,
		Data:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".raw",
	}
	return writeVolume(path, h, func(w io.Writer) error {
		buf := make([]byte, 8)
		for _, v := range f.Data {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func readData(headerPath string, h Header, decode func(io.Reader) error) error {
	dataPath := h.Data
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(headerPath), dataPath)
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("failed to open volume data %s: %w", dataPath, err)
	}
	defer file.Close()

	if err := decode(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to read volume data %s: %w", dataPath, err)
	}
	return nil
}

func writeVolume(path string, h Header, encode func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	dataPath := filepath.Join(dir, h.Data)
	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dataPath, err)
	}
	bw := bufio.NewWriter(file)
	if err := encode(bw); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", dataPath, err)
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", dataPath, err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	raw, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write header %s: %w", path, err)
	}
	return nil
}
