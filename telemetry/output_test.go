package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/rootshare/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v", om, err)
	}
	// nil manager is a no-op
	if err := om.WriteDay(DaySummary{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for day := 1; day <= 3; day++ {
		if err := om.WriteDay(Summarize(day, sampleResult())); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteUptake(Records(1, sampleResult(), nil)); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkRecovery, Day: 3}); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "days.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var days []DaySummary
	if err := gocsv.UnmarshalFile(f, &days); err != nil {
		t.Fatal(err)
	}
	if len(days) != 3 || days[2].Day != 3 || days[0].Uptake != 40 {
		t.Errorf("days.csv = %+v", days)
	}

	for _, name := range []string{"uptake.csv", "bookmarks.csv", "config.yaml", "perf.csv", "windows.csv", "plants.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
