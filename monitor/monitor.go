// Package monitor samples the memory footprint of a target process
// and appends the samples to the archive database named by its data
// binding. It reads /proc, so it is Linux only.
package monitor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wxstack/wxstack/stanza"
)

// ErrProcessNotFound is returned when no running process matches the
// configured name.
var ErrProcessNotFound = errors.New("process not found")

// Config is the monitor's stanza in the station configuration.
type Config struct {
	// Binding names the data binding the samples are stored through.
	Binding string
	// Process is the name of the process to watch, as it appears in
	// /proc/<pid>/comm.
	Process string
	// Interval is the sampling period.
	Interval time.Duration
}

// ConfigFromStanza reads the monitor's options from its stanza.
func ConfigFromStanza(sec *stanza.Section) (*Config, error) {
	cfg := &Config{Interval: 5 * time.Minute}

	binding, ok := sec.Scalar("data_binding")
	if !ok || binding == "" {
		return nil, fmt.Errorf("[%s] names no data_binding", sec.Name)
	}
	cfg.Binding = binding

	proc, ok := sec.Scalar("process")
	if !ok || proc == "" {
		return nil, fmt.Errorf("[%s] names no process", sec.Name)
	}
	cfg.Process = proc

	if v, ok := sec.Scalar("interval"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("[%s] interval %q is not a positive number of seconds", sec.Name, v)
		}
		cfg.Interval = time.Duration(secs) * time.Second
	}
	return cfg, nil
}

// Sample is one memory measurement, sizes in kilobytes.
type Sample struct {
	Time   time.Time
	PID    int
	VmRSS  int64
	VmSize int64
}

// TakeSample measures the named process right now.
func TakeSample(process string) (*Sample, error) {
	pid, err := findProcess(process)
	if err != nil {
		return nil, err
	}
	status, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return nil, err
	}
	rss, size, err := parseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, err)
	}
	return &Sample{Time: time.Now(), PID: pid, VmRSS: rss, VmSize: size}, nil
}

// findProcess scans /proc for a process whose comm matches name.
func findProcess(name string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == name {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

// parseStatus extracts VmRSS and VmSize (in kB) from a
// /proc/<pid>/status blob.
func parseStatus(status []byte) (vmRSS, vmSize int64, err error) {
	sc := bufio.NewScanner(bytes.NewReader(status))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "VmRSS:"):
			vmRSS, err = parseKB(line)
		case strings.HasPrefix(line, "VmSize:"):
			vmSize, err = parseKB(line)
		}
		if err != nil {
			return 0, 0, err
		}
	}
	if vmRSS == 0 && vmSize == 0 {
		return 0, 0, errors.New("status has no VmRSS or VmSize lines")
	}
	return vmRSS, vmSize, nil
}

func parseKB(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", line)
	}
	return strconv.ParseInt(fields[1], 10, 64)
}
