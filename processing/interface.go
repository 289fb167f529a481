package processing

import (
	"github.com/go-spatial/geom"
)

// Feature is one record of a vector dataset: an identifier, unique within its dataset,
// and a (multi)polygon geometry. A nil geometry marks a record that could not be decoded.
type Feature interface {
	ID() string
	Geometry() geom.Geometry
}

// Source yields the features of a vector dataset in a single forward pass.
type Source interface {
	// ReadFeatures sends every feature on the channel, one at a time, and returns
	// when the dataset is exhausted. It does not close the channel.
	// An error means the dataset itself could not be read further.
	ReadFeatures(chan<- Feature) error
}
