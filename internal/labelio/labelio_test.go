package labelio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLabels(t *testing.T) *volume.Labels {
	t.Helper()
	l, err := volume.FromSlice(volume.Shape{4, 3}, []uint32{
		0, 1, 1, 0,
		2, 2, 0, 300,
		0, 0, 7, 7,
	})
	require.NoError(t, err)
	return l
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.png", FormatPNG},
		{"dir/A.PNG", FormatPNG},
		{"b.tif", FormatTIFF},
		{"b.tiff", FormatTIFF},
		{"vol.yaml", FormatRaw},
		{"vol.yml", FormatRaw},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := DetectFormat("labels.jpg")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImageRoundTrip(t *testing.T) {
	for _, name := range []string{"labels.png", "labels.tif"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", name)
			in := sampleLabels(t)

			require.NoError(t, Write(path, in))
			got, err := Read(path)
			require.NoError(t, err)

			assert.Equal(t, in.Shape, got.Shape)
			assert.Equal(t, in.Data, got.Data)
		})
	}
}

func TestWriteImage_Rejects(t *testing.T) {
	dir := t.TempDir()

	big := sampleLabels(t)
	big.Data[0] = 70000
	err := WriteImage(filepath.Join(dir, "big.png"), big)
	assert.ErrorIs(t, err, ErrLabelRange)

	vol := volume.MustLabels(volume.Shape{2, 2, 2})
	err = WriteImage(filepath.Join(dir, "vol.png"), vol)
	assert.ErrorIs(t, err, ErrNotPlanar)
}

func TestFromImage_ColorModels(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(1, 0, color.Gray{Y: 9})
	assert.Equal(t, []uint32{0, 9}, FromImage(gray).Data)

	pal := image.NewPaletted(image.Rect(0, 0, 2, 1), color.Palette{color.Black, color.White, color.Gray{Y: 3}})
	pal.SetColorIndex(0, 0, 2)
	assert.Equal(t, []uint32{2, 0}, FromImage(pal).Data)

	// Offset bounds are normalized to the origin.
	sub := image.NewGray16(image.Rect(5, 5, 7, 6))
	sub.SetGray16(6, 5, color.Gray16{Y: 1234})
	l := FromImage(sub)
	assert.Equal(t, volume.Shape{2, 1}, l.Shape)
	assert.Equal(t, []uint32{0, 1234}, l.Data)
}

func TestVolumeRoundTrip(t *testing.T) {
	in := volume.MustLabels(volume.Shape{3, 2, 2})
	for i := range in.Data {
		in.Data[i] = uint32(i * 1000)
	}
	in.Spacing = []float64{1, 0.5, 2}

	path := filepath.Join(t.TempDir(), "seg.yaml")
	require.NoError(t, Write(path, in))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, Uint16, h.DType)
	assert.Equal(t, "seg.raw", h.Data)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, in.Shape, got.Shape)
	assert.Equal(t, in.Spacing, got.Spacing)
	assert.Equal(t, in.Data, got.Data)
}

func TestWriteVolume_ChecksRange(t *testing.T) {
	in := volume.MustLabels(volume.Shape{2, 2})
	in.Data[3] = 256
	err := WriteVolume(filepath.Join(t.TempDir(), "v.yaml"), in, Uint8)
	assert.ErrorIs(t, err, ErrLabelRange)

	err = WriteVolume(filepath.Join(t.TempDir(), "v.yaml"), in, Float32)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestDTypeForLabels(t *testing.T) {
	l := volume.MustLabels(volume.Shape{2})
	assert.Equal(t, Uint8, DTypeForLabels(l))
	l.Data[1] = 255
	assert.Equal(t, Uint8, DTypeForLabels(l))
	l.Data[1] = 256
	assert.Equal(t, Uint16, DTypeForLabels(l))
	l.Data[1] = 1 << 20
	assert.Equal(t, Uint32, DTypeForLabels(l))
}

func TestFloatVolumeRoundTrip(t *testing.T) {
	f, err := volume.NewFloat(volume.Shape{2, 3})
	require.NoError(t, err)
	for i := range f.Data {
		f.Data[i] = 0.25 * float64(i)
	}

	path := filepath.Join(t.TempDir(), "radius.yaml")
	require.NoError(t, WriteFloatVolume(path, f))

	got, err := ReadFloatVolume(path)
	require.NoError(t, err)
	assert.Equal(t, f.Shape, got.Shape)
	assert.Equal(t, f.Data, got.Data)

	_, err = ReadVolume(path)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestReadHeader_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad-dtype.yaml":   "shape: [2, 2]\ndtype: int8\ndata: x.raw\n",
		"no-data.yaml":     "shape: [2, 2]\ndtype: uint8\n",
		"bad-shape.yaml":   "shape: [2, 0]\ndtype: uint8\ndata: x.raw\n",
		"bad-spacing.yaml": "shape: [2, 2]\nspacing: [1]\ndtype: uint8\ndata: x.raw\n",
		"not-yaml.yaml":    "shape: [2, 2\n",
	}
	for name, body := range tests {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := ReadHeader(path)
		assert.ErrorIs(t, err, ErrInvalidHeader, name)
	}
}

func TestReadVolume_ShortData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shape: [4]\ndtype: uint16\ndata: short.raw\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.raw"), []byte{1, 0, 2}, 0o644))

	_, err := ReadVolume(path)
	assert.Error(t, err)
}
