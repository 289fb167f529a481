// Package clip masks an in-memory pixel subset to the exact shape of a polygon.
package clip

import (
	"github.com/go-spatial/geom"
	"github.com/pdok/rasterclip/geomhelp"
	"github.com/pdok/rasterclip/raster"
)

// Clip crops subset to the bounding box of the (multi)polygon g and sets every pixel
// whose center does not fall inside g to nodata, in every band.
// The result carries the cropped dimensions, a transform shifted to the crop
// and nodata as its nodata value.
//
// Invalid geometries, geometries that do not overlap the subset and masks that
// keep no pixel at all fail with raster.ErrClip.
func Clip(subset *raster.Image, g geom.Geometry, nodata float64) (*raster.Image, error) {
	polygons, err := geomhelp.Polygons(g)
	if err != nil {
		return nil, raster.KindErr(raster.ErrClip, "%v", err)
	}
	if err = geomhelp.ValidatePolygons(polygons); err != nil {
		return nil, raster.KindErr(raster.ErrClip, "invalid geometry: %v", err)
	}
	extent, err := geomhelp.Extent(polygons)
	if err != nil {
		return nil, raster.KindErr(raster.ErrClip, "%v", err)
	}

	// crop: the subset is a dataset of its own, window it to the polygon's bounds
	cropped, err := raster.ReadWindow(subset, extent)
	if err != nil {
		return nil, raster.KindErr(raster.ErrClip, "geometry does not overlap the pixel subset: %v", err)
	}

	meta := cropped.Meta
	meta.NoData = nodata
	meta.HasNoData = true
	cropped.Meta = meta

	kept := 0
	for row := 0; row < meta.Height; row++ {
		for col := 0; col < meta.Width; col++ {
			if geomhelp.PolygonsContain(polygons, meta.GeoTransform.PixelCenter(col, row)) {
				kept++
				continue
			}
			for b := range cropped.Bands {
				cropped.Set(b, col, row, nodata)
			}
		}
	}
	if kept == 0 {
		return nil, raster.KindErr(raster.ErrClip, "no pixel center of the %dx%d crop falls inside the geometry", meta.Width, meta.Height)
	}
	return cropped, nil
}
