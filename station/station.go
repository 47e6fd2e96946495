// Package station edits and validates the station configuration:
// driver selection, unit-system changes, and consistency checks.
package station

import (
	"context"
	"errors"
	"fmt"

	"github.com/wxstack/wxstack/logging/logger"
	"github.com/wxstack/wxstack/stanza"
)

var (
	// ErrDriverNotConfigured is returned when a driver is selected
	// that has no stanza in the configuration.
	ErrDriverNotConfigured = errors.New("driver has no configuration stanza")
)

// SelectDriver makes the named driver the active one by updating the
// station_type key. Every other line of the configuration is left
// byte-for-byte as it was. Selecting the already-active driver is a
// no-op and does not rewrite the file.
func SelectDriver(ctx context.Context, confPath, driver string) (changed bool, err error) {
	doc, err := stanza.ParseFile(confPath)
	if err != nil {
		return false, err
	}

	if _, err := doc.Section(driver); err != nil {
		return false, fmt.Errorf("%w: %s", ErrDriverNotConfigured, driver)
	}

	current, err := doc.Scalar("Station.station_type")
	if err != nil {
		return false, fmt.Errorf("station_type: %w", err)
	}
	if current == driver {
		logger.Infof(ctx, "driver %s is already selected", driver)
		return false, nil
	}

	if err := doc.SetScalar("Station.station_type", driver); err != nil {
		return false, err
	}
	if err := doc.WriteFile(confPath); err != nil {
		return false, err
	}
	logger.Infof(ctx, "active driver changed from %s to %s; restart the station process", current, driver)
	return true, nil
}
