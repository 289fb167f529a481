package raster

import (
	"fmt"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// northUp is a 1000x1000 grid of 1 unit pixels with its top left corner at (0, 1000).
var northUp = GeoTransform{0, 1, 0, 1000, 0, -1}

func TestGeoTransform_Invert(t *testing.T) {
	tests := []GeoTransform{
		northUp,
		{155000, 0.25, 0, 463000, 0, -0.25},
		{10, 2, 0.5, 20, 0.3, -3},
	}
	for _, gt := range tests {
		t.Run(fmt.Sprint(gt), func(t *testing.T) {
			inv, err := gt.Invert()
			require.NoError(t, err)
			x, y := gt.Apply(12.5, 7.25)
			col, row := inv.Apply(x, y)
			assert.InDelta(t, 12.5, col, 1e-9)
			assert.InDelta(t, 7.25, row, 1e-9)
		})
	}

	_, err := GeoTransform{0, 0, 0, 0, 0, 0}.Invert()
	assert.Error(t, err)
}

func TestGeoTransform_Shift(t *testing.T) {
	shifted := northUp.Shift(Window{ColOff: 100, RowOff: 740, Width: 50, Height: 60})
	assert.Equal(t, GeoTransform{100, 1, 0, 260, 0, -1}, shifted)
	assert.Equal(t, [2]float64{100.5, 259.5}, shifted.PixelCenter(0, 0))
}

func TestWindowFromBounds(t *testing.T) {
	tests := []struct {
		name    string
		gt      GeoTransform
		extent  geom.Extent
		want    Window
		wantErr bool
	}{
		{
			name:   "aligned to pixel grid",
			gt:     northUp,
			extent: geom.Extent{100, 200, 150, 260},
			want:   Window{ColOff: 100, RowOff: 740, Width: 50, Height: 60},
		},
		{
			name:   "rounded outwards to enclosing pixels",
			gt:     northUp,
			extent: geom.Extent{100.4, 200.6, 149.2, 259.9},
			want:   Window{ColOff: 100, RowOff: 740, Width: 50, Height: 60},
		},
		{
			name:   "clamped at the top left",
			gt:     northUp,
			extent: geom.Extent{-50, 900, 20, 1100},
			want:   Window{ColOff: 0, RowOff: 0, Width: 20, Height: 100},
		},
		{
			name:   "clamped at the bottom right",
			gt:     northUp,
			extent: geom.Extent{990, -10, 1200, 5},
			want:   Window{ColOff: 990, RowOff: 995, Width: 10, Height: 5},
		},
		{
			name:   "covers the whole raster",
			gt:     northUp,
			extent: geom.Extent{-1e6, -1e6, 1e6, 1e6},
			want:   Window{ColOff: 0, RowOff: 0, Width: 1000, Height: 1000},
		},
		{
			name:   "south up",
			gt:     GeoTransform{0, 1, 0, 0, 0, 1},
			extent: geom.Extent{10, 20, 30, 25},
			want:   Window{ColOff: 10, RowOff: 20, Width: 20, Height: 5},
		},
		{
			name:    "entirely outside",
			gt:      northUp,
			extent:  geom.Extent{2000, 2000, 2100, 2100},
			wantErr: true,
		},
		{
			name:    "touching the edge only",
			gt:      northUp,
			extent:  geom.Extent{1000, 0, 1010, 10},
			wantErr: true,
		},
		{
			name:    "inverted bounds",
			gt:      northUp,
			extent:  geom.Extent{10, 10, 5, 5},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WindowFromBounds(tt.gt, 1000, 1000, tt.extent)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrWindowRead)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// every window lies within the raster, whatever the requested bounds
func TestWindowFromBounds_containment(t *testing.T) {
	const width, height = 37, 23
	for minX := -20.; minX < 60; minX += 3.7 {
		for minY := -20.; minY < 40; minY += 2.9 {
			for _, size := range []float64{0.3, 5, 50} {
				extent := geom.Extent{minX, minY, minX + size, minY + size*0.7}
				w, err := WindowFromBounds(GeoTransform{0, 1, 0, height, 0, -1}, width, height, extent)
				if err != nil {
					assert.ErrorIs(t, err, ErrWindowRead)
					continue
				}
				assert.Truef(t, w.Within(width, height), "%v for %v", w, extent)
				assert.False(t, w.Empty())
			}
		}
	}
}

func TestReadWindow(t *testing.T) {
	img := gradient(Metadata{Width: 10, Height: 8, Bands: 2, GeoTransform: GeoTransform{0, 1, 0, 8, 0, -1}})

	subset, err := ReadWindow(img, geom.Extent{2, 3, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 3, subset.Meta.Width)
	assert.Equal(t, 3, subset.Meta.Height)
	assert.Equal(t, GeoTransform{2, 1, 0, 6, 0, -1}, subset.Meta.GeoTransform)
	require.Len(t, subset.Bands, 2)
	for b := 0; b < 2; b++ {
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				assert.Equal(t, img.At(b, col+2, row+2), subset.At(b, col, row))
			}
		}
	}

	_, err = ReadWindow(img, geom.Extent{20, 20, 30, 30})
	assert.ErrorIs(t, err, ErrWindowRead)
}

func TestReadWindow_closed(t *testing.T) {
	img := gradient(Metadata{Width: 4, Height: 4, Bands: 1, GeoTransform: GeoTransform{0, 1, 0, 4, 0, -1}})
	require.NoError(t, img.Close())
	_, err := ReadWindow(img, geom.Extent{0, 0, 2, 2})
	assert.ErrorIs(t, err, ErrWindowRead)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestKind(t *testing.T) {
	err := fmt.Errorf("feature 3: %w", KindErr(ErrClip, "no overlap"))
	assert.Equal(t, ErrClip, Kind(err))
	assert.Nil(t, Kind(fmt.Errorf("plain")))
	assert.EqualError(t, KindErr(ErrWrite, "disk %s", "full"), "rasterclip: write: disk full")
}

func gradient(meta Metadata) *Image {
	img := NewImage(meta)
	for b := range img.Bands {
		for i := range img.Bands[b] {
			img.Bands[b][i] = float64(b*1000 + i)
		}
	}
	return img
}
