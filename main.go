package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pdok/rasterclip/pkg/logger"
	"github.com/pdok/rasterclip/processing"
	"github.com/pdok/rasterclip/processing/fgb"
	"github.com/pdok/rasterclip/processing/gpkg"
	"github.com/pdok/rasterclip/processing/ogr"
	"github.com/pdok/rasterclip/raster/gdal"
)

const RASTER string = `raster`
const VECTOR string = `vector`
const OUTPUT string = `output`
const WORKERS string = `workers`
const LAYER string = `layer`
const IDCOLUMN string = `idColumn`
const CREATIONOPTION string = `creationOption`
const SKIPEXISTING string = `skipExisting`
const STRICT string = `strict`
const LOGLEVEL string = `logLevel`
const DEVELOPMENT string = `development`

type source interface {
	processing.Source
	Close() error
}

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "rasterclip"
	app.Usage = "Clips a raster into one GeoTIFF per polygon feature of a vector dataset"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     RASTER,
			Aliases:  []string{"r"},
			Usage:    "Source raster, anything GDAL can read",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(RASTER)},
		},
		&cli.StringFlag{
			Name:     VECTOR,
			Aliases:  []string{"v"},
			Usage:    "Source (multi)polygon features: GeoPackage (.gpkg), FlatGeobuf (.fgb) or anything OGR can read, e.g. a Shapefile",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(VECTOR)},
		},
		&cli.StringFlag{
			Name:     OUTPUT,
			Aliases:  []string{"o"},
			Usage:    "Output directory, receives clip_<id>.tif per feature. Created if missing",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(OUTPUT)},
		},
		&cli.IntFlag{
			Name:     WORKERS,
			Aliases:  []string{"w"},
			Usage:    "Maximum number of features clipped concurrently, never more than the number of CPUs",
			Value:    processing.DefaultMaxWorkers,
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(WORKERS)},
		},
		&cli.StringFlag{
			Name:     LAYER,
			Aliases:  []string{"l"},
			Usage:    "Layer or table of the vector dataset. Defaults to the first one",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(LAYER)},
		},
		&cli.StringFlag{
			Name:     IDCOLUMN,
			Aliases:  []string{"i"},
			Usage:    "Attribute used as feature id in the output file names. Defaults to the primary key, FID or ordinal",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(IDCOLUMN)},
		},
		&cli.StringSliceFlag{
			Name:     CREATIONOPTION,
			Aliases:  []string{"co"},
			Usage:    "GeoTIFF creation option for the outputs, KEY=VALUE. E.g.: COMPRESS=DEFLATE",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(CREATIONOPTION)},
		},
		&cli.BoolFlag{
			Name:     SKIPEXISTING,
			Usage:    "Skip features whose output file exists, e.g. to resume an interrupted run",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(SKIPEXISTING)},
		},
		&cli.BoolFlag{
			Name:     STRICT,
			Usage:    "Exit with a non-zero status when any feature failed",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(STRICT)},
		},
		&cli.StringFlag{
			Name:     LOGLEVEL,
			Usage:    "debug, info, warn or error",
			Value:    "info",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(LOGLEVEL)},
		},
		&cli.BoolFlag{
			Name:     DEVELOPMENT,
			Usage:    "Human readable log output",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(DEVELOPMENT)},
		},
	}

	app.Action = func(c *cli.Context) error {
		if err := logger.Init(c.String(LOGLEVEL), c.Bool(DEVELOPMENT)); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		log := logger.Get()

		config := processing.Config{
			RasterPath:   c.String(RASTER),
			OutputDir:    c.String(OUTPUT),
			MaxWorkers:   c.Int(WORKERS),
			SkipExisting: c.Bool(SKIPEXISTING),
		}
		clipper, err := processing.NewClipper(config, gdal.Opener{}, gdal.Writer{CreationOptions: c.StringSlice(CREATIONOPTION)}, log)
		if err != nil {
			return err
		}

		src, err := openSource(c.String(VECTOR), c.String(LAYER), c.String(IDCOLUMN), log)
		if err != nil {
			return err
		}

		log.Info("=== start clipping ===")
		summary, err := clipAndClose(clipper, src, log)
		if err != nil {
			return err
		}
		log.Info("=== done clipping ===")
		return exitStatus(c.Bool(STRICT), summary)
	}

	if err := app.Run(os.Args); err != nil {
		logger.Get().Error("rasterclip failed", zap.Error(err))
		_ = logger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// clipAndClose runs the clipper over all features of src and closes src afterwards,
// also when clipping stopped early.
func clipAndClose(clipper *processing.Clipper, src source, log *zap.Logger) (processing.Summary, error) {
	summary, err := clipper.ClipFeatures(src)
	if closeErr := src.Close(); closeErr != nil {
		log.Warn("could not close vector source", zap.Error(closeErr))
	}
	return summary, err
}

// exitStatus returns the cli exit error for a finished run, if any. cli ends the
// process on an exit error without running deferred calls, so the logger is
// flushed here.
func exitStatus(strict bool, summary processing.Summary) error {
	if !strict || len(summary.Failed) == 0 {
		return nil
	}
	_ = logger.Sync()
	return cli.Exit(fmt.Sprintf("%d of %d features failed", len(summary.Failed), summary.Submitted), 2)
}

// openSource picks the feature reader by file extension: GeoPackage and FlatGeobuf
// are read natively, everything else through OGR.
func openSource(file, layer, idColumn string, log *zap.Logger) (source, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".gpkg":
		s := &gpkg.SourceGeopackage{IDColumn: idColumn}
		if err := s.Init(file, layer, log); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case ".fgb":
		s := &fgb.SourceFlatGeobuf{IDColumn: idColumn}
		if err := s.Init(file, log); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		s := &ogr.SourceOGR{IDColumn: idColumn}
		if err := s.Init(file, layer, log); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
}
