package repo

import "testing"

func TestPathTemplateFormatAndParse(t *testing.T) {
	tmplt, err := newPathTemplate("hosts/{name}/managed.yml")
	if err != nil {
		t.Fatalf("newPathTemplate: %v", err)
	}

	got := tmplt.Format("web-01")
	want := "hosts/web-01/managed.yml"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}

	name, ok := tmplt.Parse("hosts/web-01/managed.yml")
	if !ok || name != "web-01" {
		t.Errorf("Parse = (%q, %v), want (web-01, true)", name, ok)
	}

	if _, ok := tmplt.Parse("hosts/web-01/other.yml"); ok {
		t.Error("Parse matched an unrelated path")
	}

	if got, want := tmplt.Glob(), "hosts/*/managed.yml"; got != want {
		t.Errorf("Glob = %q, want %q", got, want)
	}
}

func TestPathTemplateRequiresName(t *testing.T) {
	if _, err := newPathTemplate("hosts/managed.yml"); err == nil {
		t.Fatal("expected an error for a template without {name}")
	}
}

func TestPathTemplateParseAcceptsSlashesInName(t *testing.T) {
	tmplt, err := newPathTemplate("{name}/managed.yml")
	if err != nil {
		t.Fatalf("newPathTemplate: %v", err)
	}
	name, ok := tmplt.Parse("a/b/managed.yml")
	if !ok {
		t.Fatal("expected a greedy match to succeed")
	}
	if name != "a/b" {
		t.Errorf("Parse = %q, want %q", name, "a/b")
	}
}
