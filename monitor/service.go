package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wxstack/wxstack/layout"
	"github.com/wxstack/wxstack/logging/logger"
	"github.com/wxstack/wxstack/stanza"
	"github.com/wxstack/wxstack/station"
)

// StanzaName is the monitor's stanza in the station configuration.
const StanzaName = "ProcessMonitor"

// Service samples one process on an interval and stores the samples.
type Service struct {
	cfg   *Config
	store *Store
}

// NewService wires a monitor from the station configuration: its
// stanza supplies the target process and interval, and its data
// binding resolves to the SQLite file the samples land in. The
// returned cleanup closes the store.
func NewService(doc *stanza.Document, lay *layout.Layout) (*Service, func(), error) {
	sec, err := doc.Section(StanzaName)
	if err != nil {
		return nil, nil, fmt.Errorf("no [%s] stanza: %w", StanzaName, err)
	}
	cfg, err := ConfigFromStanza(sec)
	if err != nil {
		return nil, nil, err
	}

	path, table, err := station.ResolveBinding(doc, lay, cfg.Binding)
	if err != nil {
		return nil, nil, err
	}
	store, err := OpenStore(path, table)
	if err != nil {
		return nil, nil, err
	}
	return &Service{cfg: cfg, store: store}, func() { store.Close() }, nil
}

// Run samples until ctx is cancelled. A target process that is not
// running is logged and skipped, not fatal; it may start later.
func (s *Service) Run(ctx context.Context) error {
	logger.Infof(ctx, "monitoring %s every %s", s.cfg.Process, s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sampleOnce(ctx); err != nil {
				logger.Warnf(ctx, "sample: %v", err)
			}
		}
	}
}

func (s *Service) sampleOnce(ctx context.Context) error {
	sample, err := TakeSample(s.cfg.Process)
	if errors.Is(err, ErrProcessNotFound) {
		logger.Debugf(ctx, "%s is not running", s.cfg.Process)
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.Insert(ctx, sample)
}
