package preview

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColor(t *testing.T) {
	bg := Color(0)
	assert.Equal(t, uint8(0), bg.R)
	assert.Equal(t, uint8(255), bg.A)

	seen := map[[3]uint8]bool{}
	for label := uint32(1); label <= 8; label++ {
		c := Color(label)
		assert.Equal(t, uint8(255), c.A)
		key := [3]uint8{c.R, c.G, c.B}
		assert.False(t, seen[key], "label %d reuses a color", label)
		seen[key] = true
	}
}

func TestRender_Upscales(t *testing.T) {
	l, err := volume.FromSlice(volume.Shape{3, 2}, []uint32{
		0, 1, 2,
		2, 1, 0,
	})
	require.NoError(t, err)

	img, err := Render(l, Options{Scale: 4})
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())

	// Nearest neighbor keeps label colors exact.
	assert.Equal(t, Color(1), img.RGBAAt(5, 1))
	assert.Equal(t, Color(2), img.RGBAAt(0, 7))
	assert.Equal(t, Color(0), img.RGBAAt(11, 7))
}

func TestRender_Slice(t *testing.T) {
	l := volume.MustLabels(volume.Shape{2, 2, 3})
	l.Set(5, 1, 1, 2)

	img, err := Render(l, Options{Slice: []int{2}})
	require.NoError(t, err)
	assert.Equal(t, Color(5), img.RGBAAt(1, 1))

	img, err = Render(l, Options{})
	require.NoError(t, err)
	assert.Equal(t, Color(0), img.RGBAAt(1, 1))

	_, err = Render(l, Options{Slice: []int{3}})
	assert.ErrorIs(t, err, ErrSlice)
}

func TestRender_OneDimensional(t *testing.T) {
	l, err := volume.FromSlice(volume.Shape{4}, []uint32{0, 1, 1, 0})
	require.NoError(t, err)
	img, err := Render(l, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
	assert.Equal(t, Color(1), img.RGBAAt(2, 0))
}

func TestRender_Reference(t *testing.T) {
	before, err := volume.FromSlice(volume.Shape{3}, []uint32{0, 1, 1})
	require.NoError(t, err)
	after, err := volume.FromSlice(volume.Shape{3}, []uint32{1, 1, 1})
	require.NoError(t, err)

	img, err := Render(after, Options{Reference: before})
	require.NoError(t, err)
	assert.Equal(t, Color(1), img.RGBAAt(0, 0))
	assert.Equal(t, dim(Color(1)), img.RGBAAt(1, 0))

	_, err = Render(after, Options{Reference: volume.MustLabels(volume.Shape{2})})
	assert.Error(t, err)
}

func TestWritePNG(t *testing.T) {
	l, err := volume.FromSlice(volume.Shape{2, 2}, []uint32{1, 0, 0, 1})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "p", "preview.png")
	require.NoError(t, WritePNG(path, l, Options{Scale: 2}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
}
