// Package fileparse is a driver that reads observation values as
// key = value pairs from a flat file, one poll per interval. It suits
// stations whose own software already writes such a file.
package fileparse

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wxstack/wxstack/logging/logger"
	"github.com/wxstack/wxstack/stanza"
)

// StanzaName is the driver's stanza in the station configuration.
const StanzaName = "FileParse"

// Config is the driver's stanza.
type Config struct {
	// Path is the file the station software writes.
	Path string
	// PollInterval is how often the file is re-read.
	PollInterval time.Duration
	// Delimiter separates key from value. Defaults to "=".
	Delimiter string
	// LabelMap renames file keys to observation names. Keys not in
	// the map pass through unchanged.
	LabelMap map[string]string
}

// ConfigFromStanza reads the driver's options from its stanza.
func ConfigFromStanza(sec *stanza.Section) (*Config, error) {
	cfg := &Config{PollInterval: 10 * time.Second, Delimiter: "="}

	path, ok := sec.Scalar("path")
	if !ok || path == "" {
		return nil, fmt.Errorf("[%s] names no path", sec.Name)
	}
	cfg.Path = path

	if v, ok := sec.Scalar("poll_interval"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("[%s] poll_interval %q is not a positive number of seconds", sec.Name, v)
		}
		cfg.PollInterval = time.Duration(secs) * time.Second
	}
	if v, ok := sec.Scalar("delimiter"); ok && v != "" {
		cfg.Delimiter = v
	}
	if labels, ok := sec.Sub("LabelMap"); ok {
		cfg.LabelMap = make(map[string]string)
		for _, key := range labels.Keys() {
			v, _ := labels.Scalar(key)
			cfg.LabelMap[key] = v
		}
	}
	return cfg, nil
}

// Record is one poll's worth of observations. Values that look like
// numbers are float64; everything else stays a string.
type Record map[string]any

// Driver polls the file and emits records.
type Driver struct {
	cfg *Config
}

// New creates the driver.
func New(cfg *Config) *Driver {
	return &Driver{cfg: cfg}
}

// ReadRecord parses the file once.
func (d *Driver) ReadRecord() (Record, error) {
	f, err := os.Open(d.cfg.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rec := Record{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, d.cfg.Delimiter)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if mapped, ok := d.cfg.LabelMap[key]; ok {
			key = mapped
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			rec[key] = f
		} else {
			rec[key] = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Run polls until ctx is cancelled, sending each record to out. A
// missing or unreadable file is logged and skipped; the writer may
// simply not have produced it yet.
func (d *Driver) Run(ctx context.Context, out chan<- Record) error {
	logger.Infof(ctx, "polling %s every %s", d.cfg.Path, d.cfg.PollInterval)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rec, err := d.ReadRecord()
			if err != nil {
				logger.Warnf(ctx, "read: %v", err)
				continue
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
