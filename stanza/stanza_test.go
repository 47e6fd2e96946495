package stanza

import (
	"errors"
	"strings"
	"testing"
)

const sampleConf = `# WXSTACK CONFIGURATION FILE
debug = 0

[Station]
    location = "Back yard, North Pole"
    station_type = Simulator    # set by the installer
    latitude = 54.1

[Engine]
    [[Services]]
        prep_services = wxstack.engine.StdConvert
        process_services = wxstack.engine.StdPrint, wxstack.engine.StdQC

[DataBindings]
    [[wx_binding]]
        database = archive_sqlite
        table_name = archive
`

func TestParse_RoundTripIsByteIdentical(t *testing.T) {
	doc, err := ParseString(sampleConf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := doc.String(); got != sampleConf {
		t.Fatalf("round trip differs:\n--- want ---\n%s\n--- got ---\n%s", sampleConf, got)
	}
}

func TestParse_RoundTripKeepsMissingFinalNewline(t *testing.T) {
	src := strings.TrimSuffix(sampleConf, "\n")
	doc, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := doc.String(); got != src {
		t.Fatalf("round trip added or lost bytes at the end:\n--- want ---\n%q\n--- got ---\n%q", src[len(src)-40:], got[len(got)-40:])
	}

	// An edit elsewhere must not grow the last line either.
	if err := doc.SetScalar("Station.latitude", "54.2"); err != nil {
		t.Fatal(err)
	}
	got := doc.String()
	if strings.HasSuffix(got, "\n") {
		t.Error("rewrite appended a trailing newline")
	}
}

func TestParse_NestedSectionsAndValues(t *testing.T) {
	doc, err := ParseString(sampleConf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	v, err := doc.Scalar("Station.station_type")
	if err != nil {
		t.Fatalf("scalar lookup failed: %v", err)
	}
	if v != "Simulator" {
		t.Errorf("expected Simulator, got %q", v)
	}

	loc, _ := doc.Root().Sections()[0].Scalar("location")
	if loc != "Back yard, North Pole" {
		t.Errorf("quoted value mangled: %q", loc)
	}

	svc, err := doc.Section("Engine.Services")
	if err != nil {
		t.Fatalf("section lookup failed: %v", err)
	}
	list, ok := svc.List("process_services")
	if !ok || len(list) != 2 {
		t.Fatalf("expected 2 process_services entries, got %v", list)
	}
	if list[1] != "wxstack.engine.StdQC" {
		t.Errorf("unexpected list entry %q", list[1])
	}
}

func TestSetScalar_OnlyTouchesOneLine(t *testing.T) {
	doc, err := ParseString(sampleConf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := doc.SetScalar("Station.station_type", "Vantage"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	before := strings.Split(sampleConf, "\n")
	after := strings.Split(doc.String(), "\n")
	if len(before) != len(after) {
		t.Fatalf("line count changed: %d -> %d", len(before), len(after))
	}
	changed := 0
	for i := range before {
		if before[i] != after[i] {
			changed++
			if !strings.Contains(after[i], "station_type = Vantage") {
				t.Errorf("unexpected change on line %d: %q", i+1, after[i])
			}
			if !strings.Contains(after[i], "# set by the installer") {
				t.Errorf("inline comment dropped on line %d: %q", i+1, after[i])
			}
		}
	}
	if changed != 1 {
		t.Errorf("expected exactly 1 changed line, got %d", changed)
	}
}

func TestSetScalar_SameValueIsNoOp(t *testing.T) {
	doc, err := ParseString(sampleConf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := doc.SetScalar("Station.station_type", "Simulator"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := doc.String(); got != sampleConf {
		t.Errorf("no-op set modified the document")
	}
}

func TestMerge_AppendsNewStanza(t *testing.T) {
	doc, err := ParseString(sampleConf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	frag, err := ParseString("[ProcessMonitor]\n    data_binding = pmon_binding\n    process = weewxd\n")
	if err != nil {
		t.Fatalf("fragment parse failed: %v", err)
	}

	res, err := doc.Merge(frag)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(res.Added) != 1 || res.Added[0] != "ProcessMonitor" {
		t.Fatalf("unexpected merge result: %+v", res)
	}

	sec, err := doc.Section("ProcessMonitor")
	if err != nil {
		t.Fatalf("merged stanza missing: %v", err)
	}
	if v, _ := sec.Scalar("data_binding"); v != "pmon_binding" {
		t.Errorf("data_binding = %q", v)
	}
	if v, _ := sec.Scalar("process"); v != "weewxd" {
		t.Errorf("process = %q", v)
	}
	if !strings.HasPrefix(doc.String(), sampleConf) {
		t.Errorf("merge disturbed existing content")
	}
}

func TestMerge_IdenticalStanzaIsNoOp(t *testing.T) {
	doc, _ := ParseString(sampleConf)
	frag, _ := ParseString("[ProcessMonitor]\n    process = weewxd\n")

	if _, err := doc.Merge(frag); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}
	once := doc.String()

	res, err := doc.Merge(frag)
	if err != nil {
		t.Fatalf("second merge failed: %v", err)
	}
	if len(res.Unchanged) != 1 {
		t.Errorf("expected stanza reported unchanged, got %+v", res)
	}
	if doc.String() != once {
		t.Errorf("second merge modified the document")
	}
}

func TestMerge_CollisionIsRejected(t *testing.T) {
	doc, _ := ParseString(sampleConf)
	frag, _ := ParseString("[Station]\n    station_type = FileParse\n")

	_, err := doc.Merge(frag)
	if !errors.Is(err, ErrStanzaExists) {
		t.Fatalf("expected ErrStanzaExists, got %v", err)
	}
	if doc.String() != sampleConf {
		t.Errorf("failed merge modified the document")
	}
}

func TestParse_MalformedHeader(t *testing.T) {
	if _, err := ParseString("[Station\nfoo = bar\n"); err == nil {
		t.Fatal("expected error for unterminated header")
	}
	if _, err := ParseString("[]\n"); err == nil {
		t.Fatal("expected error for empty section name")
	}
}

func TestParse_DepthJumpRejected(t *testing.T) {
	if _, err := ParseString("[[Orphan]]\nfoo = bar\n"); err == nil {
		t.Fatal("expected error for depth jump")
	}
}

func TestRemoveSection_DropsPrecedingComment(t *testing.T) {
	conf := "a = 1\n# about to go\n[Doomed]\n    x = 1\n[Kept]\n    y = 2\n"
	doc, err := ParseString(conf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !doc.Root().RemoveSection("Doomed") {
		t.Fatal("RemoveSection returned false")
	}
	want := "a = 1\n[Kept]\n    y = 2\n"
	if got := doc.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
