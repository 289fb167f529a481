package raster

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDatasetOpen is returned when a raster or vector dataset cannot be opened or read.
	// Fatal to a run when it concerns the source datasets.
	ErrDatasetOpen = textErr("dataset open")
	// ErrWindowRead is returned when a bounding box does not intersect the raster
	// or when the pixels of a window cannot be read.
	ErrWindowRead = textErr("window read")
	// ErrClip is returned when a geometry cannot be used to mask a pixel subset,
	// or when masking leaves no pixels.
	ErrClip = textErr("clip")
	// ErrWrite is returned when a clipped result cannot be persisted.
	ErrWrite = textErr("write")
	// ErrClosed is returned when reading from a closed dataset.
	ErrClosed = textErr("closed")
)

// Kinds lists the error kinds a feature can fail with, in pipeline order.
var Kinds = []error{ErrDatasetOpen, ErrWindowRead, ErrClip, ErrWrite}

const packageName = "rasterclip: "

func textErr(text string) error {
	return errors.New(packageName + text)
}

// KindErr wraps err (which may be nil) as an error of the given kind.
func KindErr(kind error, format string, a ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{kind}, a...)...)
}

// Kind returns the kind sentinel err wraps, or nil if it wraps none of them.
func Kind(err error) error {
	for _, kind := range Kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName is the short name of the kind err wraps, e.g. "window read", or "other".
func KindName(err error) string {
	kind := Kind(err)
	if kind == nil {
		return "other"
	}
	return strings.TrimPrefix(kind.Error(), packageName)
}
