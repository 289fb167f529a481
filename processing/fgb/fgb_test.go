package fgb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/gogama/flatgeobuf/flatgeobuf/flat"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/pdok/rasterclip/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type part struct {
	xy   []float64
	ends []uint32
}

// buildGeometry serializes a flat geometry. With more than one part the parts
// become child polygons.
func buildGeometry(t flat.GeometryType, parts ...part) *flat.Geometry {
	b := flatbuffers.NewBuilder(256)
	var root flatbuffers.UOffsetT
	if len(parts) == 1 {
		root = buildPart(b, t, parts[0])
	} else {
		offsets := make([]flatbuffers.UOffsetT, len(parts))
		for i, p := range parts {
			offsets[i] = buildPart(b, flat.GeometryTypePolygon, p)
		}
		flat.GeometryStartPartsVector(b, len(offsets))
		for i := len(offsets) - 1; i >= 0; i-- {
			b.PrependUOffsetT(offsets[i])
		}
		partsVector := b.EndVector(len(offsets))
		flat.GeometryStart(b)
		flat.GeometryAddParts(b, partsVector)
		flat.GeometryAddType(b, t)
		root = flat.GeometryEnd(b)
	}
	b.Finish(root)
	return flat.GetRootAsGeometry(b.FinishedBytes(), 0)
}

func buildPart(b *flatbuffers.Builder, t flat.GeometryType, p part) flatbuffers.UOffsetT {
	flat.GeometryStartXyVector(b, len(p.xy))
	for i := len(p.xy) - 1; i >= 0; i-- {
		b.PrependFloat64(p.xy[i])
	}
	xy := b.EndVector(len(p.xy))
	var ends flatbuffers.UOffsetT
	if len(p.ends) > 0 {
		flat.GeometryStartEndsVector(b, len(p.ends))
		for i := len(p.ends) - 1; i >= 0; i-- {
			b.PrependUint32(p.ends[i])
		}
		ends = b.EndVector(len(p.ends))
	}
	flat.GeometryStart(b)
	flat.GeometryAddXy(b, xy)
	if len(p.ends) > 0 {
		flat.GeometryAddEnds(b, ends)
	}
	flat.GeometryAddType(b, t)
	return flat.GeometryEnd(b)
}

func TestToGeometry(t *testing.T) {
	square := []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0}
	hole := []float64{2, 2, 4, 2, 4, 4, 2, 2}
	triangle := []float64{20, 20, 30, 20, 25, 30, 20, 20}

	tests := []struct {
		name       string
		geometry   *flat.Geometry
		headerType flat.GeometryType
		want       geom.Geometry
		wantErr    bool
	}{
		{
			name:     "polygon without ends",
			geometry: buildGeometry(flat.GeometryTypePolygon, part{xy: square}),
			want:     geom.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}},
		},
		{
			name:     "polygon with hole",
			geometry: buildGeometry(flat.GeometryTypePolygon, part{xy: append(append([]float64{}, square...), hole...), ends: []uint32{5, 9}}),
			want: geom.Polygon{
				{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
				{{2, 2}, {4, 2}, {4, 4}, {2, 2}},
			},
		},
		{
			name:       "type from header",
			geometry:   buildGeometry(flat.GeometryTypeUnknown, part{xy: triangle}),
			headerType: flat.GeometryTypePolygon,
			want:       geom.Polygon{{{20, 20}, {30, 20}, {25, 30}, {20, 20}}},
		},
		{
			name:     "multipolygon",
			geometry: buildGeometry(flat.GeometryTypeMultiPolygon, part{xy: square}, part{xy: triangle}),
			want: geom.MultiPolygon{
				{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}},
				{{{20, 20}, {30, 20}, {25, 30}, {20, 20}}},
			},
		},
		{
			name:     "single part multipolygon",
			geometry: buildGeometry(flat.GeometryTypeMultiPolygon, part{xy: triangle}),
			want:     geom.MultiPolygon{{{{20, 20}, {30, 20}, {25, 30}, {20, 20}}}},
		},
		{
			name:     "line",
			geometry: buildGeometry(flat.GeometryTypeLineString, part{xy: []float64{0, 0, 1, 1}}),
			wantErr:  true,
		},
		{
			name:     "ring end beyond coordinates",
			geometry: buildGeometry(flat.GeometryTypePolygon, part{xy: triangle, ends: []uint32{9}}),
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGeometry(tt.geometry, tt.headerType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitErrors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.fgb")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a FlatGeobuf file"), 0o644))

	tests := []struct {
		name string
		file string
	}{
		{name: "missing", file: filepath.Join(t.TempDir(), "missing.fgb")},
		{name: "not FlatGeobuf", file: garbage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := SourceFlatGeobuf{}
			err := source.Init(tt.file, zaptest.NewLogger(t))
			assert.ErrorIs(t, err, raster.ErrDatasetOpen)
			_ = source.Close()
		})
	}
}
