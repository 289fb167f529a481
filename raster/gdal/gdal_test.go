package gdal

import (
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/pdok/rasterclip/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(dataType string) *raster.Image {
	img := raster.NewImage(raster.Metadata{
		Width:        4,
		Height:       3,
		Bands:        2,
		DataType:     dataType,
		GeoTransform: raster.GeoTransform{1000, 10, 0, 2000, 0, -10},
		NoData:       255,
		HasNoData:    true,
	})
	for b := range img.Bands {
		for i := range img.Bands[b] {
			img.Bands[b][i] = float64(b*100 + i)
		}
	}
	return img
}

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.tif")
	img := testImage("Byte")
	require.NoError(t, Writer{CreationOptions: []string{"COMPRESS=DEFLATE"}}.Write(path, img))

	ds, err := Opener{}.Open(path)
	require.NoError(t, err)
	defer ds.Close()

	meta := ds.Metadata()
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 3, meta.Height)
	assert.Equal(t, 2, meta.Bands)
	assert.Equal(t, "Byte", meta.DataType)
	assert.Equal(t, img.Meta.GeoTransform, meta.GeoTransform)
	assert.True(t, meta.HasNoData)
	assert.Equal(t, 255.0, meta.NoData)

	w := raster.Window{ColOff: 1, RowOff: 1, Width: 2, Height: 2}
	buf := make([]float64, w.Size())
	require.NoError(t, ds.ReadBand(1, w, buf))
	assert.Equal(t, []float64{105, 106, 109, 110}, buf)

	assert.ErrorIs(t, ds.ReadBand(2, w, buf), raster.ErrWindowRead)
	assert.ErrorIs(t, ds.ReadBand(0, raster.Window{ColOff: 3, Width: 2, Height: 1}, buf), raster.ErrWindowRead)
}

func TestReadWindowThroughGDAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.tif")
	require.NoError(t, Writer{}.Write(path, testImage("Float32")))

	ds, err := Opener{}.Open(path)
	require.NoError(t, err)
	defer ds.Close()

	// pixel (1..2, 0..1) of the 10m grid
	subset, err := raster.ReadWindow(ds, [4]float64{1010, 1980, 1030, 2000})
	require.NoError(t, err)
	assert.Equal(t, 2, subset.Meta.Width)
	assert.Equal(t, 2, subset.Meta.Height)
	assert.Equal(t, raster.GeoTransform{1010, 10, 0, 2000, 0, -10}, subset.Meta.GeoTransform)
	assert.Equal(t, []float64{1, 2, 5, 6}, subset.Bands[0])
}

func TestClosedDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.tif")
	require.NoError(t, Writer{}.Write(path, testImage("Int16")))

	ds, err := Opener{}.Open(path)
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())

	err = ds.ReadBand(0, raster.Window{Width: 1, Height: 1}, make([]float64, 1))
	assert.ErrorIs(t, err, raster.ErrWindowRead)
	assert.ErrorIs(t, err, raster.ErrClosed)
}

func TestOpenErrors(t *testing.T) {
	_, err := Opener{}.Open(filepath.Join(t.TempDir(), "missing.tif"))
	assert.ErrorIs(t, err, raster.ErrDatasetOpen)
}

func TestWriteError(t *testing.T) {
	err := Writer{}.Write(filepath.Join(t.TempDir(), "no", "such", "dir", "clip.tif"), testImage("Byte"))
	assert.ErrorIs(t, err, raster.ErrWrite)
}

func TestDataType(t *testing.T) {
	tests := map[string]godal.DataType{
		"Byte":    godal.Byte,
		"UInt16":  godal.UInt16,
		"Int32":   godal.Int32,
		"Float32": godal.Float32,
		"CInt16":  godal.Float64,
		"":        godal.Float64,
	}
	for name, want := range tests {
		assert.Equal(t, want, DataType(name), name)
	}
}
