// Package gdal reads and writes rasters through GDAL.
package gdal

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/pdok/rasterclip/raster"
)

var registerOnce sync.Once

// Register registers the GDAL drivers. Safe to call more than once.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

var dataTypes = map[string]godal.DataType{
	godal.Byte.String():    godal.Byte,
	godal.UInt16.String():  godal.UInt16,
	godal.Int16.String():   godal.Int16,
	godal.UInt32.String():  godal.UInt32,
	godal.Int32.String():   godal.Int32,
	godal.Float32.String(): godal.Float32,
	godal.Float64.String(): godal.Float64,
}

// DataType returns the GDAL pixel type with the given name. Unknown names map to Float64,
// which holds every supported type without loss.
func DataType(name string) godal.DataType {
	if dt, ok := dataTypes[name]; ok {
		return dt
	}
	return godal.Float64
}

// Opener opens rasters read-only through GDAL.
type Opener struct{}

func (Opener) Open(path string) (raster.Dataset, error) {
	Register()
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, raster.KindErr(raster.ErrDatasetOpen, "%v", err)
	}
	meta, err := metadata(ds)
	if err != nil {
		_ = ds.Close()
		return nil, raster.KindErr(raster.ErrDatasetOpen, "%s: %v", path, err)
	}
	return &Dataset{ds: ds, meta: meta}, nil
}

func metadata(ds *godal.Dataset) (raster.Metadata, error) {
	structure := ds.Structure()
	if structure.NBands == 0 {
		return raster.Metadata{}, fmt.Errorf("no raster bands")
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return raster.Metadata{}, err
	}
	meta := raster.Metadata{
		Width:        structure.SizeX,
		Height:       structure.SizeY,
		Bands:        structure.NBands,
		DataType:     structure.DataType.String(),
		Projection:   ds.Projection(),
		GeoTransform: raster.GeoTransform(gt),
	}
	meta.NoData, meta.HasNoData = ds.Bands()[0].NoData()
	return meta, nil
}

// Dataset is a GDAL raster opened read-only.
type Dataset struct {
	ds   *godal.Dataset
	meta raster.Metadata
}

func (d *Dataset) Metadata() raster.Metadata {
	return d.meta
}

func (d *Dataset) ReadBand(band int, w raster.Window, buf []float64) error {
	if d.ds == nil {
		return fmt.Errorf("%w: %w", raster.ErrWindowRead, raster.ErrClosed)
	}
	bands := d.ds.Bands()
	if band < 0 || band >= len(bands) {
		return raster.KindErr(raster.ErrWindowRead, "band %d out of range [0,%d)", band, len(bands))
	}
	if !w.Within(d.meta.Width, d.meta.Height) {
		return raster.KindErr(raster.ErrWindowRead, "%v outside %dx%d", w, d.meta.Width, d.meta.Height)
	}
	if len(buf) < w.Size() {
		return raster.KindErr(raster.ErrWindowRead, "buffer of %d values too small for %v", len(buf), w)
	}
	if err := bands[band].Read(w.ColOff, w.RowOff, buf[:w.Size()], w.Width, w.Height); err != nil {
		return raster.KindErr(raster.ErrWindowRead, "band %d %v: %v", band, w, err)
	}
	return nil
}

func (d *Dataset) Close() error {
	if d.ds == nil {
		return nil
	}
	err := d.ds.Close()
	d.ds = nil
	return err
}

// Writer writes images as GeoTIFF.
type Writer struct {
	// CreationOptions are passed to the GTiff driver, e.g. COMPRESS=DEFLATE.
	CreationOptions []string
}

func (w Writer) Write(path string, img *raster.Image) (err error) {
	Register()
	meta := img.Meta
	ds, err := godal.Create(godal.GTiff, path, meta.Bands, DataType(meta.DataType), meta.Width, meta.Height,
		godal.CreationOption(w.CreationOptions...))
	if err != nil {
		return raster.KindErr(raster.ErrWrite, "%v", err)
	}
	defer func() {
		if closeErr := ds.Close(); closeErr != nil && err == nil {
			err = raster.KindErr(raster.ErrWrite, "closing %s: %v", path, closeErr)
		}
	}()

	if err = ds.SetGeoTransform(meta.GeoTransform); err != nil {
		return raster.KindErr(raster.ErrWrite, "geotransform: %v", err)
	}
	if meta.Projection != "" {
		if err = ds.SetProjection(meta.Projection); err != nil {
			return raster.KindErr(raster.ErrWrite, "projection: %v", err)
		}
	}
	for i, band := range ds.Bands() {
		if meta.HasNoData {
			if err = band.SetNoData(meta.NoData); err != nil {
				return raster.KindErr(raster.ErrWrite, "nodata of band %d: %v", i, err)
			}
		}
		if err = band.Write(0, 0, img.Bands[i], meta.Width, meta.Height); err != nil {
			return raster.KindErr(raster.ErrWrite, "band %d: %v", i, err)
		}
	}
	return nil
}
