package raster

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/pdok/rasterclip/mathhelp"
)

// pixelTolerance absorbs floating point noise when a bound lies exactly on a pixel edge,
// so that such a bound is not widened by a whole pixel.
const pixelTolerance = 1e-9

// Window is a rectangular region of a raster's pixel grid.
type Window struct {
	ColOff int
	RowOff int
	Width  int
	Height int
}

// Empty reports whether the window covers no pixels.
func (w Window) Empty() bool {
	return w.Width <= 0 || w.Height <= 0
}

// Size is the number of pixels in the window.
func (w Window) Size() int {
	if w.Empty() {
		return 0
	}
	return w.Width * w.Height
}

// Within reports whether the window lies entirely within a grid of width×height pixels.
func (w Window) Within(width, height int) bool {
	return w.ColOff >= 0 && w.RowOff >= 0 &&
		w.Width >= 0 && w.Height >= 0 &&
		w.ColOff+w.Width <= width && w.RowOff+w.Height <= height
}

func (w Window) String() string {
	return fmt.Sprintf("Window{col:%d,row:%d,width:%d,height:%d}", w.ColOff, w.RowOff, w.Width, w.Height)
}

// WindowFromBounds computes the pixel window covering extent on the grid described by gt,
// rounded outwards to whole pixels and clamped to [0,width]×[0,height].
// A window without area (the extent lies outside the grid) is an ErrWindowRead.
func WindowFromBounds(gt GeoTransform, width, height int, extent geom.Extent) (Window, error) {
	inv, err := gt.Invert()
	if err != nil {
		return Window{}, KindErr(ErrWindowRead, "%v", err)
	}
	if !validExtent(extent) {
		return Window{}, KindErr(ErrWindowRead, "invalid bounds %v", extent)
	}

	// all four corners, so that flipped and rotated grids work too
	minCol, minRow := math.Inf(1), math.Inf(1)
	maxCol, maxRow := math.Inf(-1), math.Inf(-1)
	for _, corner := range extent.Vertices() {
		col, row := inv.Apply(corner[0], corner[1])
		minCol, maxCol = math.Min(minCol, col), math.Max(maxCol, col)
		minRow, maxRow = math.Min(minRow, row), math.Max(maxRow, row)
	}

	colOff := mathhelp.Clamp(int(math.Floor(minCol+pixelTolerance)), 0, width)
	rowOff := mathhelp.Clamp(int(math.Floor(minRow+pixelTolerance)), 0, height)
	colEnd := mathhelp.Clamp(int(math.Ceil(maxCol-pixelTolerance)), 0, width)
	rowEnd := mathhelp.Clamp(int(math.Ceil(maxRow-pixelTolerance)), 0, height)

	w := Window{ColOff: colOff, RowOff: rowOff, Width: colEnd - colOff, Height: rowEnd - rowOff}
	if w.Empty() {
		return w, KindErr(ErrWindowRead, "bounds %v do not intersect the %dx%d raster", extent, width, height)
	}
	return w, nil
}

func validExtent(e geom.Extent) bool {
	for _, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return e.MinX() <= e.MaxX() && e.MinY() <= e.MaxY()
}

// ReadWindow reads the pixels of all bands of ds that cover extent.
// The returned image carries the source metadata, resized to the window,
// and a transform whose origin is the window's top left corner.
func ReadWindow(ds Dataset, extent geom.Extent) (*Image, error) {
	meta := ds.Metadata()
	w, err := WindowFromBounds(meta.GeoTransform, meta.Width, meta.Height, extent)
	if err != nil {
		return nil, err
	}

	subsetMeta := meta
	subsetMeta.Width = w.Width
	subsetMeta.Height = w.Height
	subsetMeta.GeoTransform = meta.GeoTransform.Shift(w)
	subset := NewImage(subsetMeta)
	for b := 0; b < meta.Bands; b++ {
		if err = ds.ReadBand(b, w, subset.Bands[b]); err != nil {
			if Kind(err) != nil {
				return nil, err
			}
			return nil, KindErr(ErrWindowRead, "band %d of %v: %v", b+1, w, err)
		}
	}
	return subset, nil
}
