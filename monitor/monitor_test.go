package monitor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/wxstack/wxstack/stanza"
)

const statusBlob = `Name:	weewxd
Umask:	0022
State:	S (sleeping)
Pid:	1234
VmPeak:	  265932 kB
VmSize:	  265928 kB
VmRSS:	   58204 kB
VmData:	  180204 kB
Threads:	6
`

func TestParseStatus(t *testing.T) {
	rss, size, err := parseStatus([]byte(statusBlob))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rss != 58204 {
		t.Errorf("VmRSS = %d", rss)
	}
	if size != 265928 {
		t.Errorf("VmSize = %d", size)
	}
}

func TestParseStatus_NoMemoryLines(t *testing.T) {
	if _, _, err := parseStatus([]byte("Name:\tkthreadd\n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigFromStanza(t *testing.T) {
	doc, err := stanza.ParseString(`[ProcessMonitor]
    data_binding = pmon_binding
    process = weewxd
    interval = 60
`)
	if err != nil {
		t.Fatal(err)
	}
	sec, _ := doc.Section("ProcessMonitor")
	cfg, err := ConfigFromStanza(sec)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Binding != "pmon_binding" || cfg.Process != "weewxd" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Interval != time.Minute {
		t.Errorf("interval = %s", cfg.Interval)
	}
}

func TestConfigFromStanza_Invalid(t *testing.T) {
	tests := []struct {
		name string
		conf string
	}{
		{"no binding", "[ProcessMonitor]\n    process = weewxd\n"},
		{"no process", "[ProcessMonitor]\n    data_binding = pmon_binding\n"},
		{"bad interval", "[ProcessMonitor]\n    data_binding = b\n    process = p\n    interval = soon\n"},
	}
	for _, tt := range tests {
		doc, err := stanza.ParseString(tt.conf)
		if err != nil {
			t.Fatal(err)
		}
		sec, _ := doc.Section("ProcessMonitor")
		if _, err := ConfigFromStanza(sec); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmon.sdb")
	store, err := OpenStore(path, "pmon")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		sample := &Sample{Time: base.Add(time.Duration(i) * time.Minute), PID: 1234, VmRSS: int64(58000 + i), VmSize: 265928}
		if err := store.Insert(ctx, sample); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d", n)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.VmRSS != 58002 {
		t.Errorf("latest = %+v", latest)
	}
	if !latest.Time.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("latest time = %s", latest.Time)
	}
}

func TestStore_LatestEmpty(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "pmon.sdb"), "pmon")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Errorf("latest = %+v", latest)
	}
}

func TestTakeSample_Self(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs /proc")
	}
	comm, err := os.ReadFile("/proc/self/comm")
	if err != nil {
		t.Skip("cannot read /proc/self/comm")
	}
	name := strings.TrimSpace(string(comm))

	sample, err := TakeSample(name)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if sample.VmRSS <= 0 || sample.VmSize <= 0 {
		t.Errorf("sample = %+v", sample)
	}
}

func TestTakeSample_NotFound(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs /proc")
	}
	if _, err := TakeSample("no-such-process-zzz"); err == nil {
		t.Fatal("expected error")
	}
}
