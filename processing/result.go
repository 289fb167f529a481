package processing

import (
	"fmt"

	"github.com/pdok/rasterclip/mapslicehelp"
	"github.com/pdok/rasterclip/raster"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FeatureError attributes a processing failure to a feature.
type FeatureError struct {
	FeatureID string
	Err       error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %s: %v", e.FeatureID, e.Err)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Result is the outcome of processing one feature: the output path on success,
// the error on failure.
type Result struct {
	FeatureID string
	Path      string
	Err       error
	// Skipped is set when the output already existed and was left untouched.
	Skipped bool
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Summary aggregates the results of a run.
type Summary struct {
	// Submitted is the number of features handed to the workers.
	Submitted int
	// Succeeded holds the output paths of the successful features, in completion order.
	Succeeded []string
	// Failed holds the failed results, in completion order.
	Failed []Result
	// FailuresByKind counts the failures per error kind, in order of first occurrence.
	FailuresByKind *orderedmap.OrderedMap[string, int]
}

func newSummary() Summary {
	return Summary{FailuresByKind: orderedmap.New[string, int]()}
}

func (s *Summary) add(r Result) {
	s.Submitted++
	if r.OK() {
		s.Succeeded = append(s.Succeeded, r.Path)
		return
	}
	s.Failed = append(s.Failed, r)
	mapslicehelp.Increment(s.FailuresByKind, raster.KindName(r.Err))
}

// DominantFailure returns the most frequent kind of failure and its count.
// On a tie the kind that first occurred latest wins.
func (s Summary) DominantFailure() (kind string, count int) {
	if s.FailuresByKind == nil {
		return "", 0
	}
	kind, count, _ = mapslicehelp.FindLastKeyWithMaxValue(s.FailuresByKind)
	return kind, count
}

// FailureCount returns the number of failures of the given kind name.
func (s Summary) FailureCount(kind string) int {
	if s.FailuresByKind == nil {
		return 0
	}
	n, _ := s.FailuresByKind.Get(kind)
	return n
}
