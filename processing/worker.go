package processing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-spatial/geom"
	"github.com/pdok/rasterclip/clip"
	"github.com/pdok/rasterclip/geomhelp"
	"github.com/pdok/rasterclip/raster"
	"go.uber.org/zap"
)

const (
	outputPrefix = "clip_"
	partSuffix   = ".part"
	wktLogWidth  = 160
)

var unsafeFileNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Clipper clips one raster by the features of a vector dataset.
type Clipper struct {
	config Config
	opener raster.Opener
	writer raster.Writer
	logger *zap.Logger
}

// NewClipper returns a Clipper for the (defaulted and validated) config.
func NewClipper(config Config, opener raster.Opener, writer raster.Writer, logger *zap.Logger) (*Clipper, error) {
	if err := config.Init(); err != nil {
		return nil, fmt.Errorf("invalid clip config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clipper{config: config, opener: opener, writer: writer, logger: logger}, nil
}

// OutputPath is the file the clip of the feature with the given id is written to.
// Equal ids always give equal paths.
func (c *Clipper) OutputPath(featureID string) string {
	name := outputPrefix + unsafeFileNameChars.ReplaceAllString(featureID, "_") + c.config.Extension
	return filepath.Join(c.config.OutputDir, name)
}

// ProcessFeature reads the window of the raster covering the feature, masks it to the
// feature's geometry and writes the result. Every failure, including a panic,
// ends up in the returned Result; nothing is propagated to the caller.
func (c *Clipper) ProcessFeature(f Feature) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Path = ""
			result.Err = &FeatureError{FeatureID: result.FeatureID, Err: fmt.Errorf("panic: %v", r)}
			// the feature itself may be what panicked, so leave its geometry alone
			c.logger.Error("panic processing feature", zap.String("feature", result.FeatureID), zap.Error(result.Err))
		}
	}()
	result.FeatureID = f.ID()

	path := c.OutputPath(result.FeatureID)
	if c.config.SkipExisting {
		if _, err := os.Stat(path); err == nil {
			c.logger.Debug("output exists, skipping", zap.String("feature", result.FeatureID), zap.String("path", path))
			result.Path = path
			result.Skipped = true
			return result
		}
	}

	if err := c.clipFeature(f, path); err != nil {
		result.Err = &FeatureError{FeatureID: result.FeatureID, Err: err}
		c.logFailure(f, result.Err)
		return result
	}
	result.Path = path
	return result
}

func (c *Clipper) clipFeature(f Feature, path string) error {
	polygons, err := geomhelp.Polygons(f.Geometry())
	if err != nil {
		return raster.KindErr(raster.ErrClip, "%v", err)
	}
	if err = geomhelp.ValidatePolygons(polygons); err != nil {
		return raster.KindErr(raster.ErrClip, "invalid geometry: %v", err)
	}
	bounds, err := geomhelp.Extent(polygons)
	if err != nil {
		return raster.KindErr(raster.ErrClip, "bounding box: %v", err)
	}

	subset, err := c.readWindow(bounds)
	if err != nil {
		return err
	}
	clipped, err := clip.Clip(subset, f.Geometry(), subset.Meta.NoDataOr(0))
	if err != nil {
		return err
	}
	return c.write(path, clipped)
}

// readWindow opens a private handle on the raster, only for as long as the read takes.
func (c *Clipper) readWindow(bounds geom.Extent) (subset *raster.Image, err error) {
	ds, err := c.opener.Open(c.config.RasterPath)
	if err != nil {
		return nil, ensureKind(raster.ErrDatasetOpen, err)
	}
	defer func() {
		if closeErr := ds.Close(); closeErr != nil && err == nil {
			err = raster.KindErr(raster.ErrWindowRead, "closing %s: %v", c.config.RasterPath, closeErr)
		}
	}()
	return raster.ReadWindow(ds, bounds)
}

// write persists the image next to its final path and renames it into place,
// so that a failed feature never leaves a file that looks like a result.
func (c *Clipper) write(path string, img *raster.Image) error {
	part := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+partSuffix)
	if err := c.writer.Write(part, img); err != nil {
		c.removePart(part)
		return ensureKind(raster.ErrWrite, err)
	}
	if err := os.Rename(part, path); err != nil {
		c.removePart(part)
		return raster.KindErr(raster.ErrWrite, "%v", err)
	}
	return nil
}

func (c *Clipper) removePart(part string) {
	if err := os.Remove(part); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("could not remove partial output", zap.String("path", part), zap.Error(err))
	}
}

func (c *Clipper) logFailure(f Feature, err error) {
	c.logger.Warn("error processing feature",
		zap.String("feature", f.ID()),
		zap.String("kind", raster.KindName(err)),
		zap.Error(err),
	)
	if ce := c.logger.Check(zap.DebugLevel, "failed geometry"); ce != nil {
		ce.Write(zap.String("feature", f.ID()), zap.String("wkt", geomhelp.WktTruncated(f.Geometry(), wktLogWidth)))
	}
}

func ensureKind(kind, err error) error {
	if raster.Kind(err) != nil {
		return err
	}
	return raster.KindErr(kind, "%v", err)
}
