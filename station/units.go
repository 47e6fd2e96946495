package station

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wxstack/wxstack/layout"
	"github.com/wxstack/wxstack/logging/logger"
	"github.com/wxstack/wxstack/stanza"
)

// Unit systems the converter can target.
var unitSystems = []string{"US", "METRIC", "METRICWX"}

// ErrUnitChangeLocked is returned when the target unit system would
// change while the bound archive already holds records.
var ErrUnitChangeLocked = errors.New("unit system is locked by existing archive records")

// IsValidUnitSystem reports whether name is a recognized unit system.
func IsValidUnitSystem(name string) bool {
	for _, s := range unitSystems {
		if s == name {
			return true
		}
	}
	return false
}

// SetTargetUnits changes the unit system new records are converted to.
// Once records have been stored in the bound archive the unit system
// is fixed; changing it then requires converting the database first,
// so the request is rejected.
func SetTargetUnits(ctx context.Context, confPath string, lay *layout.Layout, target string) (changed bool, err error) {
	if !IsValidUnitSystem(target) {
		return false, fmt.Errorf("unknown unit system %q (use one of %v)", target, unitSystems)
	}

	doc, err := stanza.ParseFile(confPath)
	if err != nil {
		return false, err
	}

	current, err := doc.Scalar("StdConvert.target_unit")
	if err != nil {
		return false, fmt.Errorf("target_unit: %w", err)
	}
	if current == target {
		logger.Infof(ctx, "target unit system is already %s", target)
		return false, nil
	}

	rows, err := archiveRowCount(doc, lay)
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return false, fmt.Errorf(
			"%w: %d records stored as %s; convert the database before switching to %s",
			ErrUnitChangeLocked, rows, current, target)
	}

	if err := doc.SetScalar("StdConvert.target_unit", target); err != nil {
		return false, err
	}
	if err := doc.WriteFile(confPath); err != nil {
		return false, err
	}
	logger.Infof(ctx, "target unit system changed from %s to %s; restart the station process", current, target)
	return true, nil
}

// archiveRowCount opens the archive the station records into and
// counts its rows. A database that does not exist yet counts as empty.
func archiveRowCount(doc *stanza.Document, lay *layout.Layout) (int64, error) {
	path, table, err := ResolveBinding(doc, lay, archiveBinding(doc))
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int64
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting archive records: %w", err)
	}
	return n, nil
}

// archiveBinding returns the data binding the archive service records
// through, defaulting to wx_binding.
func archiveBinding(doc *stanza.Document) string {
	if v, err := doc.Scalar("StdArchive.data_binding"); err == nil && v != "" {
		return v
	}
	return "wx_binding"
}

// ResolveBinding resolves a data binding name to the SQLite file it is
// backed by and the table it records into.
func ResolveBinding(doc *stanza.Document, lay *layout.Layout, binding string) (path, table string, err error) {
	bsec, err := doc.Section("DataBindings." + binding)
	if err != nil {
		return "", "", fmt.Errorf("data binding %s: %w", binding, err)
	}
	dbName, ok := bsec.Scalar("database")
	if !ok {
		return "", "", fmt.Errorf("data binding %s names no database", binding)
	}
	table, ok = bsec.Scalar("table_name")
	if !ok {
		table = "archive"
	}

	dsec, err := doc.Section("Databases." + dbName)
	if err != nil {
		return "", "", fmt.Errorf("database %s: %w", dbName, err)
	}
	file, ok := dsec.Scalar("database_name")
	if !ok {
		return "", "", fmt.Errorf("database %s names no file", dbName)
	}
	if filepath.IsAbs(file) {
		return file, table, nil
	}
	return layout.Join(lay.Dir(layout.RoleDatabase), file), table, nil
}
