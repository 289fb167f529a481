package geomhelp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/go-spatial/geom/planar"
	"github.com/muesli/reflow/truncate"
)

var (
	ErrEmptyGeometry       = errors.New("empty geometry")
	ErrNotPolygonal        = errors.New("not a polygon or multipolygon")
	ErrDegenerateRing      = errors.New("ring has fewer than 3 distinct vertices or no area")
	ErrSelfIntersectedRing = errors.New("ring intersects itself")
)

// https://en.wikipedia.org/wiki/Shoelace_formula
func Shoelace(pts [][2]float64) float64 {
	sum := 0.
	if len(pts) == 0 {
		return 0.
	}

	p0 := pts[len(pts)-1]
	for _, p1 := range pts {
		sum += p0[1]*p1[0] - p0[0]*p1[1]
		p0 = p1
	}
	return math.Abs(sum / 2)
}

// from paulmach/orb
// Original implementation: http://rosettacode.org/wiki/Ray-casting_algorithm#Go
//
//nolint:cyclop,nestif
func RayIntersect(pt, start, end [2]float64) (intersects, on bool) {
	if start[0] > end[0] {
		start, end = end, start
	}

	if pt[0] == start[0] {
		if pt[1] == start[1] {
			// pt == start
			return false, true
		} else if start[0] == end[0] {
			// vertical segment (start -> end)
			// return true if within the line, check to see if start or end is greater.
			if start[1] > end[1] && start[1] >= pt[1] && pt[1] >= end[1] {
				return false, true
			}

			if end[1] > start[1] && end[1] >= pt[1] && pt[1] >= start[1] {
				return false, true
			}
		}

		// Move the y coordinate to deal with degenerate case
		pt[0] = math.Nextafter(pt[0], math.Inf(1))
	} else if pt[0] == end[0] {
		if pt[1] == end[1] {
			// matching the end point
			return false, true
		}

		pt[0] = math.Nextafter(pt[0], math.Inf(1))
	}

	if pt[0] < start[0] || pt[0] > end[0] {
		return false, false
	}

	if start[1] > end[1] {
		if pt[1] > start[1] {
			return false, false
		} else if pt[1] < end[1] {
			return true, false
		}
	} else {
		if pt[1] > end[1] {
			return false, false
		} else if pt[1] < start[1] {
			return true, false
		}
	}

	rs := (pt[1] - start[1]) / (pt[0] - start[0])
	ds := (end[1] - start[1]) / (end[0] - start[0])

	if rs == ds {
		return false, true
	}

	return rs <= ds, false
}

// RingContains reports whether pt lies inside the ring, and whether it lies on its boundary.
// The ring may be open or closed.
func RingContains(ring [][2]float64, pt [2]float64) (inside, on bool) {
	if len(ring) < 3 {
		return false, false
	}
	inside, on = RayIntersect(pt, ring[0], ring[len(ring)-1])
	if on {
		return true, true
	}
	for i := 0; i < len(ring)-1; i++ {
		intersects, onSegment := RayIntersect(pt, ring[i], ring[i+1])
		if onSegment {
			return true, true
		}
		if intersects {
			inside = !inside
		}
	}
	return inside, false
}

// PolygonContains reports whether pt lies inside the polygon, boundaries included.
// Points strictly inside a hole are outside.
func PolygonContains(p geom.Polygon, pt [2]float64) bool {
	if len(p) == 0 {
		return false
	}
	if inside, _ := RingContains(p[0], pt); !inside {
		return false
	}
	for _, hole := range p[1:] {
		if inside, on := RingContains(hole, pt); inside && !on {
			return false
		}
	}
	return true
}

// PolygonsContain reports whether pt lies inside any of the polygons.
func PolygonsContain(ps []geom.Polygon, pt [2]float64) bool {
	for i := range ps {
		if PolygonContains(ps[i], pt) {
			return true
		}
	}
	return false
}

// Polygons returns the polygons that make up a polygonal geometry.
func Polygons(g geom.Geometry) ([]geom.Polygon, error) {
	switch v := g.(type) {
	case nil:
		return nil, ErrEmptyGeometry
	case geom.Polygon:
		return []geom.Polygon{v}, nil
	case *geom.Polygon:
		if v == nil {
			return nil, ErrEmptyGeometry
		}
		return []geom.Polygon{*v}, nil
	case geom.MultiPolygon:
		return multiPolygonParts(v), nil
	case *geom.MultiPolygon:
		if v == nil {
			return nil, ErrEmptyGeometry
		}
		return multiPolygonParts(*v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotPolygonal, g)
	}
}

func multiPolygonParts(mp geom.MultiPolygon) []geom.Polygon {
	ps := make([]geom.Polygon, len(mp))
	for i := range mp {
		ps[i] = mp[i]
	}
	return ps
}

// ValidatePolygons checks that the geometry is a non-empty (multi)polygon
// whose rings are simple and enclose an area.
func ValidatePolygons(ps []geom.Polygon) error {
	if len(ps) == 0 {
		return ErrEmptyGeometry
	}
	for i := range ps {
		if len(ps[i]) == 0 {
			return ErrEmptyGeometry
		}
		for r, ring := range ps[i] {
			if err := ValidateRing(ring); err != nil {
				return fmt.Errorf("polygon %d ring %d: %w", i, r, err)
			}
		}
	}
	return nil
}

// ValidateRing checks a single linear ring, open or closed.
func ValidateRing(ring [][2]float64) error {
	pts := distinctVertices(ring)
	if len(pts) < 3 {
		return ErrDegenerateRing
	}
	if i, j, ok := selfIntersection(pts); ok {
		return fmt.Errorf("%w: segments %d and %d", ErrSelfIntersectedRing, i, j)
	}
	if Shoelace(pts) == 0 {
		return ErrDegenerateRing
	}
	return nil
}

type segment struct {
	index      int
	line       geom.Line
	minX, maxX float64
}

// selfIntersection sweeps the segments of the ring from left to right and only
// compares segments whose x ranges overlap. Neighbouring segments share a vertex
// and are skipped.
func selfIntersection(pts [][2]float64) (i, j int, ok bool) {
	n := len(pts)
	segments := make([]segment, n)
	for k := range pts {
		l := geom.Line{pts[k], pts[(k+1)%n]}
		segments[k] = segment{index: k, line: l, minX: math.Min(l[0][0], l[1][0]), maxX: math.Max(l[0][0], l[1][0])}
	}
	sort.Slice(segments, func(a, b int) bool { return segments[a].minX < segments[b].minX })

	active := make([]segment, 0, 16)
	for _, s := range segments {
		kept := active[:0]
		for _, a := range active {
			if a.maxX < s.minX {
				continue
			}
			kept = append(kept, a)
			if neighbours(a.index, s.index, n) {
				continue
			}
			if _, intersects := planar.SegmentIntersect(a.line, s.line); intersects {
				i, j = a.index, s.index
				if i > j {
					i, j = j, i
				}
				return i, j, true
			}
		}
		active = append(kept, s)
	}
	return 0, 0, false
}

func neighbours(a, b, n int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d == 1 || d == n-1
}

// distinctVertices drops consecutive duplicates and the closing vertex.
func distinctVertices(ring [][2]float64) [][2]float64 {
	pts := make([][2]float64, 0, len(ring))
	for _, pt := range ring {
		if len(pts) > 0 && pts[len(pts)-1] == pt {
			continue
		}
		pts = append(pts, pt)
	}
	for len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// Extent returns the bounding box of the polygons.
func Extent(ps []geom.Polygon) (geom.Extent, error) {
	if len(ps) == 0 {
		return geom.Extent{}, ErrEmptyGeometry
	}
	ext, err := geom.NewExtentFromGeometry(geom.MultiPolygon(polygonsAsFloats(ps)))
	if err != nil {
		return geom.Extent{}, err
	}
	if ext == nil {
		// no points at all
		return geom.Extent{}, ErrEmptyGeometry
	}
	return *ext, nil
}

func polygonsAsFloats(ps []geom.Polygon) [][][][2]float64 {
	floats := make([][][][2]float64, len(ps))
	for i := range ps {
		floats[i] = ps[i]
	}
	return floats
}

// WktTruncated encodes the geometry as WKT for use in log messages.
// A width of 0 means no truncation.
func WktTruncated(g geom.Geometry, width uint) string {
	if g == nil {
		return "<nil>"
	}
	s, err := wkt.EncodeString(g)
	if err != nil {
		return fmt.Sprintf("<%T: %v>", g, err)
	}
	if width == 0 {
		return s
	}
	return truncate.StringWithTail(s, width, "...")
}
