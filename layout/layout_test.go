package layout

import (
	"testing"

	"github.com/wxstack/wxstack/stanza"
)

func TestJoin_LastAbsoluteWins(t *testing.T) {
	tests := []struct {
		elems []string
		want  string
	}{
		{[]string{"/home/station", "skins"}, "/home/station/skins"},
		{[]string{"/home/station", "/var/lib/wx"}, "/var/lib/wx"},
		{[]string{"/a", "b", "/c", "d"}, "/c/d"},
		{[]string{"/a", "", "b"}, "/a/b"},
		{[]string{"rel", "sub"}, "rel/sub"},
	}
	for _, tt := range tests {
		if got := Join(tt.elems...); got != tt.want {
			t.Errorf("Join(%v) = %q, want %q", tt.elems, got, tt.want)
		}
	}
}

func TestNew_DefaultsAndOverrides(t *testing.T) {
	l := New("/home/station", map[string]string{RoleDatabase: "/var/lib/wx"})

	if got := l.Dir(RoleUser); got != "/home/station/bin/user" {
		t.Errorf("user dir = %q", got)
	}
	if got := l.Dir(RoleSkins); got != "/home/station/skins" {
		t.Errorf("skins dir = %q", got)
	}
	if got := l.Dir(RoleDatabase); got != "/var/lib/wx" {
		t.Errorf("database dir = %q", got)
	}
	if got := l.Dir("bogus"); got != "/home/station" {
		t.Errorf("unknown role should fall back to root, got %q", got)
	}
}

func TestFromConfig(t *testing.T) {
	doc, err := stanza.ParseString("WXSTACK_ROOT = /opt/wx\n\n[Paths]\n    skins = custom-skins\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	l := FromConfig(doc, "/etc/wxstack/wxstack.conf")

	if got := l.Root(); got != "/opt/wx" {
		t.Errorf("root = %q", got)
	}
	if got := l.Dir(RoleSkins); got != "/opt/wx/custom-skins" {
		t.Errorf("skins dir = %q", got)
	}
}

func TestFromConfig_RootDefaultsToConfigDir(t *testing.T) {
	doc, err := stanza.ParseString("debug = 0\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	l := FromConfig(doc, "/home/station/wxstack.conf")
	if got := l.Root(); got != "/home/station" {
		t.Errorf("root = %q", got)
	}
}
