// Package fgb reads clip features from FlatGeobuf files.
package fgb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-spatial/geom"
	"github.com/gogama/flatgeobuf/flatgeobuf"
	"github.com/gogama/flatgeobuf/flatgeobuf/flat"
	"github.com/pdok/rasterclip/processing"
	"github.com/pdok/rasterclip/raster"
	"go.uber.org/zap"
)

var errUnsupportedGeometry = errors.New("unsupported geometry type")

type featureFGB struct {
	id       string
	geometry geom.Geometry
}

func (f featureFGB) ID() string {
	return f.id
}

func (f featureFGB) Geometry() geom.Geometry {
	return f.geometry
}

// SourceFlatGeobuf streams the features of a FlatGeobuf file, one at a time.
type SourceFlatGeobuf struct {
	// IDColumn is the property the feature ids are taken from. Defaults to the feature ordinal.
	IDColumn string

	file   *os.File
	reader *flatgeobuf.FileReader
	header *flat.Header
	logger *zap.Logger
}

// Init opens the file and reads its header.
func (source *SourceFlatGeobuf) Init(file string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	source.logger = logger

	f, err := os.Open(file)
	if err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "%v", err)
	}
	source.file = f
	source.reader = flatgeobuf.NewFileReader(f)
	if source.header, err = source.reader.Header(); err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "reading FlatGeobuf header of %s: %v", file, err)
	}
	if source.IDColumn != "" && columnIndex(source.header, source.IDColumn) < 0 {
		return raster.KindErr(raster.ErrDatasetOpen, "%s has no column %s", file, source.IDColumn)
	}
	logger.Debug("reading FlatGeobuf",
		zap.String("file", file),
		zap.String("name", string(source.header.Name())),
		zap.String("geometryType", source.header.GeometryType().String()),
		zap.Uint64("features", source.header.FeaturesCount()),
	)
	return nil
}

func (source SourceFlatGeobuf) Close() error {
	if source.reader != nil {
		return source.reader.Close()
	}
	if source.file != nil {
		return source.file.Close()
	}
	return nil
}

// ReadFeatures sends the features in file order. A feature whose geometry cannot be
// converted is sent with a nil geometry.
func (source SourceFlatGeobuf) ReadFeatures(features chan<- processing.Feature) error {
	buf := make([]flat.Feature, 1)
	for ordinal := 0; ; ordinal++ {
		n, err := source.reader.Data(buf)
		if n == 1 {
			features <- source.feature(&buf[0], ordinal)
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return raster.KindErr(raster.ErrDatasetOpen, "reading feature %d: %v", ordinal, err)
		}
	}
}

func (source SourceFlatGeobuf) feature(f *flat.Feature, ordinal int) (feature featureFGB) {
	feature.id = fmt.Sprint(ordinal)
	// a corrupt buffer panics inside the flatbuffers accessors
	defer func() {
		if r := recover(); r != nil {
			source.logger.Warn("error decoding the feature", zap.String("feature", feature.id), zap.Any("panic", r))
			feature.geometry = nil
		}
	}()

	if source.IDColumn != "" {
		id, err := propertyString(f, source.header, source.IDColumn)
		if err != nil {
			source.logger.Warn("error reading the id", zap.Int("ordinal", ordinal), zap.Error(err))
		} else {
			feature.id = id
		}
	}

	var g flat.Geometry
	if f.Geometry(&g) == nil {
		source.logger.Warn("feature without geometry", zap.String("feature", feature.id))
		return feature
	}
	geometry, err := ToGeometry(&g, source.header.GeometryType())
	if err != nil {
		source.logger.Warn("error decoding the geometry", zap.String("feature", feature.id), zap.Error(err))
		return feature
	}
	feature.geometry = geometry
	return feature
}

// ToGeometry converts a flat (multi)polygon to its go-spatial counterpart. The type of
// the geometry itself takes precedence over the type from the header.
func ToGeometry(g *flat.Geometry, headerType flat.GeometryType) (geom.Geometry, error) {
	geometryType := g.Type()
	if geometryType == flat.GeometryTypeUnknown {
		geometryType = headerType
	}
	switch geometryType {
	case flat.GeometryTypePolygon:
		return toPolygon(g)
	case flat.GeometryTypeMultiPolygon:
		if g.PartsLength() == 0 {
			// single part multipolygons may be stored without parts
			p, err := toPolygon(g)
			if err != nil {
				return nil, err
			}
			return geom.MultiPolygon{p}, nil
		}
		mp := make(geom.MultiPolygon, 0, g.PartsLength())
		for i := 0; i < g.PartsLength(); i++ {
			var part flat.Geometry
			if !g.Parts(&part, i) {
				return nil, fmt.Errorf("missing part %d", i)
			}
			p, err := toPolygon(&part)
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", i, err)
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedGeometry, geometryType)
	}
}

// toPolygon splits the xy coordinates into rings at the ends offsets.
// Without ends the polygon has one ring.
func toPolygon(g *flat.Geometry) (geom.Polygon, error) {
	if g.XyLength()%2 != 0 {
		return nil, fmt.Errorf("odd number of coordinates: %d", g.XyLength())
	}
	points := g.XyLength() / 2
	ends := []int{points}
	if g.EndsLength() > 0 {
		ends = make([]int, g.EndsLength())
		for i := range ends {
			ends[i] = int(g.Ends(i))
		}
	}

	polygon := make(geom.Polygon, 0, len(ends))
	start := 0
	for _, end := range ends {
		if end < start || end > points {
			return nil, fmt.Errorf("ring end %d out of range [%d,%d]", end, start, points)
		}
		ring := make([][2]float64, 0, end-start)
		for i := start; i < end; i++ {
			ring = append(ring, [2]float64{g.Xy(2 * i), g.Xy(2*i + 1)})
		}
		polygon = append(polygon, ring)
		start = end
	}
	return polygon, nil
}

func columnIndex(schema flatgeobuf.Schema, name string) int {
	var col flat.Column
	for i := 0; i < schema.ColumnsLength(); i++ {
		if schema.Columns(&col, i) && string(col.Name()) == name {
			return i
		}
	}
	return -1
}

// propertyString returns the value of the named property. The feature's own column
// schema takes precedence over the header's.
func propertyString(f *flat.Feature, header *flat.Header, name string) (string, error) {
	var schema flatgeobuf.Schema = header
	if f.ColumnsLength() > 0 {
		schema = f
	}
	values, err := flatgeobuf.NewPropReader(bytes.NewReader(f.PropertiesBytes())).ReadSchema(schema)
	if err != nil {
		return "", err
	}
	for _, v := range values {
		if string(v.Col.Name()) == name {
			if b, ok := v.Value.([]byte); ok {
				return string(b), nil
			}
			return fmt.Sprint(v.Value), nil
		}
	}
	return "", fmt.Errorf("no value for property %s", name)
}
