// Package raster holds the pixel side of clipping: georeferenced grids,
// windows on those grids and the datasets they are read from.
// The GDAL backed implementation lives in raster/gdal, Image is the in-memory one.
package raster

// Metadata describes a raster dataset.
type Metadata struct {
	Width  int
	Height int
	Bands  int
	// DataType is the name of the pixel type as the I/O layer knows it, e.g. Byte or Float32.
	DataType     string
	Projection   string
	GeoTransform GeoTransform
	NoData       float64
	HasNoData    bool
}

// NoDataOr returns the nodata value, or fallback when the dataset has none.
func (m Metadata) NoDataOr(fallback float64) float64 {
	if m.HasNoData {
		return m.NoData
	}
	return fallback
}

// Dataset is a read-only raster.
type Dataset interface {
	Metadata() Metadata
	// ReadBand reads the pixels of band (zero-based) inside w into buf, row by row.
	// buf must hold w.Width*w.Height values.
	ReadBand(band int, w Window, buf []float64) error
	Close() error
}

// Opener opens a raster dataset read-only. Every call returns a new, private handle.
type Opener interface {
	Open(path string) (Dataset, error)
}

// Writer persists an image as a standalone raster file.
type Writer interface {
	Write(path string, img *Image) error
}
