package raster

import "fmt"

// Image is an in-memory raster: bands × height × width pixel values plus metadata.
// It is also a Dataset, so a pixel subset can be windowed and masked like any other raster
// without ever being persisted.
type Image struct {
	Meta Metadata
	// Bands holds one row-major slice of Width*Height values per band.
	Bands  [][]float64
	closed bool
}

// NewImage allocates a zeroed image for meta.
func NewImage(meta Metadata) *Image {
	bands := make([][]float64, meta.Bands)
	n := meta.Width * meta.Height
	if n < 0 {
		n = 0
	}
	for b := range bands {
		bands[b] = make([]float64, n)
	}
	return &Image{Meta: meta, Bands: bands}
}

func (img *Image) Metadata() Metadata {
	return img.Meta
}

// At returns the value of band at (col, row).
func (img *Image) At(band, col, row int) float64 {
	return img.Bands[band][row*img.Meta.Width+col]
}

// Set sets the value of band at (col, row).
func (img *Image) Set(band, col, row int, v float64) {
	img.Bands[band][row*img.Meta.Width+col] = v
}

func (img *Image) ReadBand(band int, w Window, buf []float64) error {
	if img.closed {
		return fmt.Errorf("%w: %w", ErrWindowRead, ErrClosed)
	}
	if band < 0 || band >= len(img.Bands) {
		return KindErr(ErrWindowRead, "band %d out of range [0,%d)", band, len(img.Bands))
	}
	if !w.Within(img.Meta.Width, img.Meta.Height) {
		return KindErr(ErrWindowRead, "%v outside %dx%d", w, img.Meta.Width, img.Meta.Height)
	}
	if len(buf) < w.Size() {
		return KindErr(ErrWindowRead, "buffer of %d values too small for %v", len(buf), w)
	}
	src := img.Bands[band]
	for r := 0; r < w.Height; r++ {
		start := (w.RowOff+r)*img.Meta.Width + w.ColOff
		copy(buf[r*w.Width:(r+1)*w.Width], src[start:start+w.Width])
	}
	return nil
}

// Close releases the pixel data. Reading afterwards fails.
func (img *Image) Close() error {
	img.closed = true
	img.Bands = nil
	return nil
}
