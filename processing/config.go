package processing

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// DefaultMaxWorkers caps the number of concurrent workers, so that many workers
// streaming windows of the same raster do not saturate the I/O system.
const DefaultMaxWorkers = 16

// Config holds the settings of a clip run.
type Config struct {
	// RasterPath is the raster every feature is clipped from.
	RasterPath string `validate:"required"`
	// OutputDir receives one file per successfully clipped feature.
	OutputDir string `validate:"required"`
	// MaxWorkers is the upper bound of the worker pool; the pool is never larger
	// than the number of CPUs.
	MaxWorkers int `default:"16" validate:"min=1"`
	// Extension of the output files, including the dot.
	Extension string `default:".tif" validate:"startswith=."`
	// SkipExisting treats features whose output file exists as done.
	SkipExisting bool
}

// Init applies the defaults for unset fields and validates the config.
func (c *Config) Init() error {
	if err := defaults.Set(c); err != nil {
		return err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(c)
}
