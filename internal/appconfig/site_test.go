package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadUpdateSiteMissingIsNotError(t *testing.T) {
	dir := t.TempDir()
	site, err := LoadUpdateSite(dir)
	if err != nil {
		t.Fatalf("LoadUpdateSite: %v", err)
	}
	if site != nil {
		t.Fatalf("expected nil site for missing file, got %+v", site)
	}
}

func TestWriteThenLoadUpdateSiteRoundTrips(t *testing.T) {
	dir := t.TempDir()
	want := &UpdateSite{FeedURL: "https://example.com/manifest.json", Channel: "stable", CheckIntervalHours: 24}

	if err := WriteUpdateSite(dir, want); err != nil {
		t.Fatalf("WriteUpdateSite: %v", err)
	}

	got, err := LoadUpdateSite(dir)
	if err != nil {
		t.Fatalf("LoadUpdateSite: %v", err)
	}
	if got == nil || *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestLoadUpdateSiteRejectsUnparseableYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, SiteFileName), "feed_url: [unterminated")

	if _, err := LoadUpdateSite(dir); err == nil {
		t.Fatal("expected an error parsing malformed yaml")
	}
}
