// Package processing takes care of the logistics around clipping: reading features from a Source,
// fanning them out over a bounded pool of workers and collecting the results.
// Not the clip operation itself.
package processing

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/pdok/rasterclip/mapslicehelp"
	"github.com/pdok/rasterclip/mathhelp"
	"github.com/pdok/rasterclip/raster"
	"go.uber.org/zap"
)

// Workers is the size of the worker pool: the configured cap, but no more than the number of CPUs.
func (c *Clipper) Workers() int {
	return mathhelp.MinNonZero(c.config.MaxWorkers, runtime.NumCPU())
}

// ClipFeatures clips the raster by every feature of the source and returns once all
// features have been processed. Per-feature failures are tallied in the Summary and
// do not stop the run. An error is returned only when the run could not start
// (unreadable raster, output directory that cannot be created) or when the source
// broke off while being read; in the latter case the features read until then are
// still processed and summarized.
func (c *Clipper) ClipFeatures(source Source) (Summary, error) {
	summary := newSummary()
	if err := os.MkdirAll(c.config.OutputDir, 0o755); err != nil {
		return summary, raster.KindErr(raster.ErrWrite, "could not create output directory: %v", err)
	}
	if err := c.checkRaster(); err != nil {
		return summary, err
	}

	workers := c.Workers()
	c.logger.Info("start clipping",
		zap.String("raster", c.config.RasterPath),
		zap.String("output", c.config.OutputDir),
		zap.Int("workers", workers),
	)

	features := make(chan Feature)
	results := make(chan Result)
	sourceErr := make(chan error, 1)

	go func() {
		defer close(features)
		sourceErr <- source.ReadFeatures(features)
	}()

	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feature := range features {
				results <- c.ProcessFeature(feature)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// results arrive in completion order, not in the order the features were read
	for result := range results {
		summary.add(result)
		if result.OK() && !result.Skipped {
			c.logger.Info("created", zap.String("feature", result.FeatureID), zap.String("path", result.Path))
		}
	}

	c.logSummary(summary)
	if err := <-sourceErr; err != nil {
		return summary, fmt.Errorf("reading features stopped after %d: %w", summary.Submitted, err)
	}
	return summary, nil
}

// checkRaster makes sure the raster can be opened at all, before any feature is submitted.
func (c *Clipper) checkRaster() error {
	ds, err := c.opener.Open(c.config.RasterPath)
	if err != nil {
		return ensureKind(raster.ErrDatasetOpen, err)
	}
	meta := ds.Metadata()
	c.logger.Debug("raster",
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Int("bands", meta.Bands),
		zap.String("dataType", meta.DataType),
		zap.Float64s("geoTransform", meta.GeoTransform[:]),
	)
	return ds.Close()
}

func (c *Clipper) logSummary(s Summary) {
	c.logger.Info("all features processed",
		zap.Int("submitted", s.Submitted),
		zap.Int("succeeded", len(s.Succeeded)),
		zap.Int("failed", len(s.Failed)),
	)
	if len(s.Failed) == 0 {
		return
	}
	fields := make([]zap.Field, 0, s.FailuresByKind.Len())
	for _, kind := range mapslicehelp.OrderedMapKeys(s.FailuresByKind) {
		fields = append(fields, zap.Int(kind, s.FailureCount(kind)))
	}
	kind, count := s.DominantFailure()
	c.logger.Warn("failures by kind", append(fields, zap.String("dominant", kind))...)

	// the same write failure over and over is about the disk, not about the features
	if writes := s.FailureCount(raster.KindName(raster.ErrWrite)); writes > 1 {
		c.logger.Error("writing outputs failed repeatedly, check the output directory and free disk space",
			zap.Int("writeFailures", writes),
			zap.String("output", c.config.OutputDir),
		)
	}
	if count == s.Submitted {
		c.logger.Error("every feature failed", zap.String("kind", kind))
	}
}
