package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charts", "nested", "out.txt")
	if err := SafeWriteFile(path, []byte("hello")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected content %q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone, stat err=%v", err)
	}
	if !FileExists(path) || FileExists(filepath.Dir(path)) {
		t.Fatalf("FileExists should report regular files only")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Top 20 Cities by Accidents": "top_20_cities_by_accidents",
		"Hour of day (Sunday)":       "hour_of_day_sunday",
		"  ":                         "chart",
		"Start_Lat vs Start_Lng":     "start_lat_vs_start_lng",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q)=%q want %q", in, got, want)
		}
	}
}
