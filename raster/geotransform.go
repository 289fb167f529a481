package raster

import (
	"fmt"
	"math"
)

// GeoTransform is an affine transform between pixel/line and georeferenced coordinates,
// using the coefficient order of GDAL:
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
//
// For a north-up image gt[2] and gt[4] are zero and gt[5] is negative.
type GeoTransform [6]float64

// Apply maps the pixel/line position (col, row) to georeferenced coordinates.
func (gt GeoTransform) Apply(col, row float64) (x, y float64) {
	x = gt[0] + col*gt[1] + row*gt[2]
	y = gt[3] + col*gt[4] + row*gt[5]
	return x, y
}

// PixelCenter returns the georeferenced coordinates of the center of pixel (col, row).
func (gt GeoTransform) PixelCenter(col, row int) [2]float64 {
	x, y := gt.Apply(float64(col)+.5, float64(row)+.5)
	return [2]float64{x, y}
}

// Invert returns the transform from georeferenced coordinates to pixel/line.
func (gt GeoTransform) Invert() (GeoTransform, error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return GeoTransform{}, fmt.Errorf("geotransform %v is not invertible", gt)
	}
	inv := 1 / det
	return GeoTransform{
		(gt[2]*gt[3] - gt[0]*gt[5]) * inv,
		gt[5] * inv,
		-gt[2] * inv,
		(-gt[1]*gt[3] + gt[0]*gt[4]) * inv,
		-gt[4] * inv,
		gt[1] * inv,
	}, nil
}

// Shift returns the transform of the subset starting at the window's offset.
// Pixel sizes and rotation stay the same, only the origin moves.
func (gt GeoTransform) Shift(w Window) GeoTransform {
	x, y := gt.Apply(float64(w.ColOff), float64(w.RowOff))
	return GeoTransform{x, gt[1], gt[2], y, gt[4], gt[5]}
}
