package config

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
)

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close() on nil report error = %v", err)
	}
	// all stores are ignored
	r.Store("a", "b")
	r.StoreData("a", []byte("b"))
	if err := r.StoreCopy("a", "b"); err != nil {
		t.Errorf("StoreCopy() on nil report error = %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name() on nil report = %q", r.Name())
	}
	if r.In("job") != nil {
		t.Error("view of nil report must be nil")
	}
}

func TestReport_Views(t *testing.T) {
	tmp := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(tmp, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	log := filepath.Join(tmp, "final.log")
	if err := os.WriteFile(log, []byte("log"), 0644); err != nil {
		t.Fatal(err)
	}
	r.Store("final.log", log)
	r.Store("gone.log", filepath.Join(tmp, "gone.log"))
	job := r.In("jobs/42")
	job.StoreData("content.txt", []byte("a"))
	job.StoreData("content.txt", []byte("b"))
	job.In("pass1").StoreData("story.txt", []byte("c"))

	if err := job.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	zr, err := zip.OpenReader(conf.Destination)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer zr.Close()

	var got []string
	for _, f := range zr.File {
		got = append(got, f.Name)
	}
	want := []string{"MANIFEST", "final.log", "jobs/42/content-1.txt", "jobs/42/content.txt", "jobs/42/pass1/story.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("report entries = %v, want %v", got, want)
	}
}

func TestReport_ConcurrentStoreData(t *testing.T) {
	conf := ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.StoreData(fmt.Sprintf("jobs/%d/story.txt", i), []byte("story"))
			// same name twice must not panic, it gets versioned
			r.StoreData("shared.txt", []byte("shared"))
		}()
	}
	wg.Wait()

	name := r.Name()
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer zr.Close()

	// 8 job entries + 8 shared versions + MANIFEST
	if len(zr.File) != 17 {
		t.Errorf("report has %d entries, want 17", len(zr.File))
	}
}

func TestReport_StoreCopy(t *testing.T) {
	tmp := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(tmp, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	src := filepath.Join(tmp, "artifact.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.3"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.StoreCopy("artifact.pdf", src); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	// original may go away before report is closed
	if err := os.Remove(src); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(conf.Destination)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer zr.Close()

	found := false
	for _, f := range zr.File {
		if f.Name == "artifact.pdf" {
			found = true
		}
	}
	if !found {
		t.Error("copied artifact missing from report")
	}
}
