package gpkg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/pdok/rasterclip/processing"
	"github.com/pdok/rasterclip/raster"
	"go.uber.org/zap"
)

var errNoTable = errors.New("no feature table")

type featureGPKG struct {
	id       string
	geometry geom.Geometry
}

func (f featureGPKG) ID() string {
	return f.id
}

func (f featureGPKG) Geometry() geom.Geometry {
	return f.geometry
}

type column struct {
	cid       int
	name      string
	ctype     string
	notnull   int
	dfltValue *string
	pk        int
}

// Table is a feature table registered in gpkg_geometry_columns.
type Table struct {
	Name    string
	columns []column
	gcolumn string
	gtype   string
	srsID   int
}

// pk returns the name of the primary key column, or "" if the table has none.
func (t Table) pk() string {
	for _, c := range t.columns {
		if c.pk == 1 {
			return c.name
		}
	}
	return ""
}

func (t Table) hasColumn(name string) bool {
	for _, c := range t.columns {
		if c.name == name {
			return true
		}
	}
	return false
}

// SourceGeopackage reads the features of one table of a GeoPackage.
type SourceGeopackage struct {
	Table Table
	// IDColumn is the column the feature ids are taken from. Defaults to the primary key.
	IDColumn string

	handle *gpkg.Handle
	logger *zap.Logger
}

// Init opens the GeoPackage and selects the table with the given name,
// or the first feature table when layer is empty.
func (source *SourceGeopackage) Init(file, layer string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	source.logger = logger

	// gpkg.Open happily creates a missing file
	if _, err := os.Stat(file); err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "%v", err)
	}
	handle, err := gpkg.Open(file)
	if err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "opening GeoPackage %s: %v", file, err)
	}
	source.handle = handle

	tables, err := source.GetTableInfo()
	if err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "reading tables of %s: %v", file, err)
	}
	table, err := selectTable(tables, layer)
	if err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "%s: %v", file, err)
	}
	source.Table = table

	if source.IDColumn == "" {
		source.IDColumn = table.pk()
	} else if !table.hasColumn(source.IDColumn) {
		return raster.KindErr(raster.ErrDatasetOpen, "table %s has no column %s", table.Name, source.IDColumn)
	}
	logger.Debug("reading GeoPackage",
		zap.String("file", file),
		zap.String("table", table.Name),
		zap.String("geometryColumn", table.gcolumn),
		zap.String("geometryType", table.gtype),
		zap.String("idColumn", source.IDColumn),
	)
	return nil
}

func selectTable(tables []Table, layer string) (Table, error) {
	if len(tables) == 0 {
		return Table{}, errNoTable
	}
	if layer == "" {
		return tables[0], nil
	}
	for _, t := range tables {
		if t.Name == layer {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("%w named %s", errNoTable, layer)
}

func (source SourceGeopackage) Close() error {
	if source.handle == nil {
		return nil
	}
	return source.handle.Close()
}

// ReadFeatures sends the rows of the table in rowid order. A row whose geometry
// cannot be decoded is sent with a nil geometry.
func (source SourceGeopackage) ReadFeatures(features chan<- processing.Feature) error {
	rows, err := source.handle.Query(source.Table.selectSQL(source.IDColumn))
	if err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "querying %s: %v", source.Table.Name, err)
	}
	defer rows.Close()

	ordinal := 0
	for rows.Next() {
		var id, raw interface{}
		if err = rows.Scan(&id, &raw); err != nil {
			return raster.KindErr(raster.ErrDatasetOpen, "reading row %d of %s: %v", ordinal, source.Table.Name, err)
		}
		f := featureGPKG{id: columnString(id, ordinal)}
		f.geometry = source.decode(f.id, raw)
		features <- f
		ordinal++
	}
	if err = rows.Err(); err != nil {
		return raster.KindErr(raster.ErrDatasetOpen, "reading %s: %v", source.Table.Name, err)
	}
	return nil
}

func (source SourceGeopackage) decode(id string, raw interface{}) geom.Geometry {
	b, ok := raw.([]byte)
	if !ok {
		source.logger.Warn("feature without geometry", zap.String("feature", id))
		return nil
	}
	sb, err := gpkg.DecodeGeometry(b)
	if err != nil {
		source.logger.Warn("error decoding the geometry", zap.String("feature", id), zap.Error(err))
		return nil
	}
	return sb.Geometry
}

// columnString formats a sqlite value as feature id, falling back to the row ordinal for NULL.
func columnString(v interface{}, ordinal int) string {
	switch v := v.(type) {
	case nil:
		return fmt.Sprint(ordinal)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// GetTableInfo lists the feature tables of the GeoPackage.
func (source SourceGeopackage) GetTableInfo() ([]Table, error) {
	query := `SELECT table_name, column_name, geometry_type_name, srs_id FROM gpkg_geometry_columns;`
	rows, err := source.handle.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", query, err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.gcolumn, &t.gtype, &t.srsID); err != nil {
			return nil, fmt.Errorf("error reading the source table information: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].columns, err = getTableColumns(source.handle, tables[i].Name); err != nil {
			return nil, err
		}
		tables[i].gtype = strings.ToUpper(tables[i].gtype)
	}
	return tables, nil
}

// selectSQL builds a SELECT of the id and geometry columns. Without id column the rowid is used.
func (t Table) selectSQL(idColumn string) string {
	if idColumn == "" {
		idColumn = "rowid"
	} else {
		idColumn = `"` + idColumn + `"`
	}
	return `SELECT ` + idColumn + `, "` + t.gcolumn + `" FROM "` + t.Name + `" ORDER BY rowid;`
}

// getTableColumns collects the column information of a given table
func getTableColumns(h *gpkg.Handle, table string) ([]column, error) {
	query := `PRAGMA table_info('%v');`
	rows, err := h.Query(fmt.Sprintf(query, table))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", query, err)
	}
	defer rows.Close()

	var columns []column
	for rows.Next() {
		var column column
		err := rows.Scan(&column.cid, &column.name, &column.ctype, &column.notnull, &column.dfltValue, &column.pk)
		if err != nil {
			return nil, fmt.Errorf("error getting the column information: %w", err)
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}
