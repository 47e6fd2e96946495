package station

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wxstack/wxstack/layout"
	"github.com/wxstack/wxstack/stanza"
)

const testConf = `# Station configuration.
[Station]
    location = "Backyard, Anytown"
    station_type = Simulator

[Simulator]
    loop_interval = 2.5
    mode = simulator

[FileParse]
    path = /var/tmp/wxdata.txt
    poll_interval = 10

[StdConvert]
    target_unit = METRICWX

[StdArchive]
    archive_interval = 300
    data_binding = wx_binding

[DataBindings]
    [[wx_binding]]
        database = archive_sqlite
        table_name = archive

[Databases]
    [[archive_sqlite]]
        database_name = wxstack.sdb
        driver = sqlite

[Engine]
    [[Services]]
        prep_services = engine.StdTimeSynch
        process_services = engine.StdCalibrate, engine.StdQC
        archive_services = engine.StdArchive
`

func writeConf(t *testing.T, content string) (confPath string, lay *layout.Layout) {
	t.Helper()
	root := t.TempDir()
	confPath = filepath.Join(root, "wxstack.conf")
	if err := os.WriteFile(confPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return confPath, layout.New(root, nil)
}

func TestSelectDriver(t *testing.T) {
	confPath, _ := writeConf(t, testConf)
	ctx := context.Background()

	changed, err := SelectDriver(ctx, confPath, "FileParse")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !changed {
		t.Error("expected a change")
	}

	after, err := os.ReadFile(confPath)
	if err != nil {
		t.Fatal(err)
	}

	// Exactly one line differs.
	beforeLines := strings.Split(testConf, "\n")
	afterLines := strings.Split(string(after), "\n")
	if len(beforeLines) != len(afterLines) {
		t.Fatalf("line count changed: %d -> %d", len(beforeLines), len(afterLines))
	}
	var diffs []int
	for i := range beforeLines {
		if beforeLines[i] != afterLines[i] {
			diffs = append(diffs, i)
		}
	}
	if len(diffs) != 1 {
		t.Fatalf("%d lines changed, want 1", len(diffs))
	}
	if got := afterLines[diffs[0]]; got != "    station_type = FileParse" {
		t.Errorf("changed line = %q", got)
	}
}

func TestSelectDriver_Idempotent(t *testing.T) {
	confPath, _ := writeConf(t, testConf)
	ctx := context.Background()

	if _, err := SelectDriver(ctx, confPath, "FileParse"); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(confPath)

	changed, err := SelectDriver(ctx, confPath, "FileParse")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("re-selection reported a change")
	}
	after, _ := os.ReadFile(confPath)
	if string(before) != string(after) {
		t.Error("re-selection modified the config")
	}
}

func TestSelectDriver_Unconfigured(t *testing.T) {
	confPath, _ := writeConf(t, testConf)
	if _, err := SelectDriver(context.Background(), confPath, "Vantage"); !errors.Is(err, ErrDriverNotConfigured) {
		t.Fatalf("err = %v, want ErrDriverNotConfigured", err)
	}
}

// seedArchive creates the bound SQLite archive with n records.
func seedArchive(t *testing.T, lay *layout.Layout, n int) {
	t.Helper()
	dir := lay.Dir(layout.RoleDatabase)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite3", layout.Join(dir, "wxstack.sdb"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE archive (dateTime INTEGER PRIMARY KEY, usUnits INTEGER, outTemp REAL)`); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if _, err := db.Exec(`INSERT INTO archive VALUES (?, 17, 12.5)`, 1700000000+i*300); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSetTargetUnits_EmptyArchive(t *testing.T) {
	confPath, lay := writeConf(t, testConf)

	changed, err := SetTargetUnits(context.Background(), confPath, lay, "US")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !changed {
		t.Error("expected a change")
	}
	doc, _ := stanza.ParseFile(confPath)
	if v, _ := doc.Scalar("StdConvert.target_unit"); v != "US" {
		t.Errorf("target_unit = %q", v)
	}
}

func TestSetTargetUnits_LockedByRecords(t *testing.T) {
	confPath, lay := writeConf(t, testConf)
	seedArchive(t, lay, 3)

	_, err := SetTargetUnits(context.Background(), confPath, lay, "US")
	if !errors.Is(err, ErrUnitChangeLocked) {
		t.Fatalf("err = %v, want ErrUnitChangeLocked", err)
	}
	// The refusal names the conversion step.
	if !strings.Contains(err.Error(), "convert the database") {
		t.Errorf("err = %v", err)
	}

	doc, _ := stanza.ParseFile(confPath)
	if v, _ := doc.Scalar("StdConvert.target_unit"); v != "METRICWX" {
		t.Errorf("target_unit = %q after rejected change", v)
	}
}

func TestSetTargetUnits_SameTarget(t *testing.T) {
	confPath, lay := writeConf(t, testConf)
	seedArchive(t, lay, 3)

	// Re-stating the current system is a no-op even with records.
	changed, err := SetTargetUnits(context.Background(), confPath, lay, "METRICWX")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if changed {
		t.Error("no-op reported a change")
	}
}

func TestSetTargetUnits_UnknownSystem(t *testing.T) {
	confPath, lay := writeConf(t, testConf)
	if _, err := SetTargetUnits(context.Background(), confPath, lay, "IMPERIAL"); err == nil {
		t.Fatal("expected error for unknown unit system")
	}
}

func TestCheck_CleanConfig(t *testing.T) {
	confPath, lay := writeConf(t, testConf)
	doc, err := stanza.ParseFile(confPath)
	if err != nil {
		t.Fatal(err)
	}
	if problems := Check(doc, lay, nil); len(problems) != 0 {
		t.Errorf("problems = %v", problems)
	}
}

func TestCheck_FindsProblems(t *testing.T) {
	const broken = `[Station]
    station_type = Vantage

[ProcessMonitor]
    data_binding = pmon_binding
    process = weewxd

[DataBindings]
    [[wx_binding]]
        table_name = archive

[Engine]
    [[Services]]
        turbo_services = engine.StdTimeSynch
        process_services = StdCalibrate

[Alerting]
    [[HighWind]]
        expression = "windSpeed > 20"
`
	confPath, lay := writeConf(t, broken)
	doc, err := stanza.ParseFile(confPath)
	if err != nil {
		t.Fatal(err)
	}

	problems := Check(doc, lay, map[string]bool{"windSpeed": true})
	wantSubstrings := []string{
		"station_type names Vantage",
		"unknown stage turbo_services",
		`"StdCalibrate" is not module-qualified`,
		"names no database",
		"data_binding pmon_binding is not configured",
		"no message",
	}
	for _, want := range wantSubstrings {
		found := false
		for _, p := range problems {
			if strings.Contains(p.String(), want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no problem mentioning %q in %v", want, problems)
		}
	}
}
