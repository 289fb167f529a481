// Package ogr reads clip features from any vector format GDAL/OGR can open,
// e.g. Shapefile or GeoJSON.
package ogr

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkb"
	"github.com/pdok/rasterclip/processing"
	"github.com/pdok/rasterclip/raster"
	"github.com/pdok/rasterclip/raster/gdal"
	"go.uber.org/zap"
)

type featureOGR struct {
	id       string
	geometry geom.Geometry
}

func (f featureOGR) ID() string {
	return f.id
}

func (f featureOGR) Geometry() geom.Geometry {
	return f.geometry
}

// SourceOGR reads the features of one layer of an OGR dataset.
type SourceOGR struct {
	// IDColumn is the attribute the feature ids are taken from. Defaults to the FID.
	IDColumn string

	ds     *godal.Dataset
	layer  godal.Layer
	logger *zap.Logger
}

// Init opens the dataset and selects the layer with the given name, or the first
// layer when name is empty.
func (source *SourceOGR) Init(file, layer string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	source.logger = logger

	gdal.Register()
	ds, err := godal.Open(file, godal.VectorOnly())
	if err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "%v", err)
	}
	source.ds = ds

	layers := ds.Layers()
	if len(layers) == 0 {
		return raster.KindErr(raster.ErrDatasetOpen, "%s has no layers", file)
	}
	source.layer = layers[0]
	if layer != "" {
		found := false
		for _, l := range layers {
			if l.Name() == layer {
				source.layer, found = l, true
				break
			}
		}
		if !found {
			return raster.KindErr(raster.ErrDatasetOpen, "%s has no layer %s", file, layer)
		}
	}
	logger.Debug("reading OGR layer",
		zap.String("file", file),
		zap.String("layer", source.layer.Name()),
		zap.String("idColumn", source.IDColumn),
	)
	return nil
}

func (source SourceOGR) Close() error {
	if source.ds == nil {
		return nil
	}
	return source.ds.Close()
}

// ReadFeatures sends the features of the layer in reading order. A feature whose
// geometry cannot be converted is sent with a nil geometry.
func (source SourceOGR) ReadFeatures(features chan<- processing.Feature) error {
	source.layer.ResetReading()
	for {
		f := source.layer.NextFeature()
		if f == nil {
			return nil
		}
		feature, err := source.feature(f)
		f.Close()
		if err != nil {
			return err
		}
		features <- feature
	}
}

func (source SourceOGR) feature(f *godal.Feature) (featureOGR, error) {
	feature := featureOGR{id: fmt.Sprint(f.FID())}
	if source.IDColumn != "" {
		field, ok := f.Fields()[source.IDColumn]
		if !ok {
			return feature, raster.KindErr(raster.ErrDatasetOpen, "layer %s has no attribute %s", source.layer.Name(), source.IDColumn)
		}
		feature.id = field.String()
	}

	g := f.Geometry()
	if g == nil {
		source.logger.Warn("feature without geometry", zap.String("feature", feature.id))
		return feature, nil
	}
	defer g.Close()
	if g.Empty() {
		source.logger.Warn("feature without geometry", zap.String("feature", feature.id))
		return feature, nil
	}
	b, err := g.WKB()
	if err != nil {
		source.logger.Warn("error exporting the geometry", zap.String("feature", feature.id), zap.Error(err))
		return feature, nil
	}
	if feature.geometry, err = wkb.DecodeBytes(b); err != nil {
		source.logger.Warn("error decoding the geometry", zap.String("feature", feature.id), zap.Error(err))
		feature.geometry = nil
	}
	return feature, nil
}
