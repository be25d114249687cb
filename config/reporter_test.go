package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestReportClose_RemovesCopies(t *testing.T) {
	tmpDir := t.TempDir()
	r := &ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	rpt, err := r.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	src := filepath.Join(tmpDir, "page.mei")
	if err := os.WriteFile(src, []byte("<mei/>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if err := rpt.StoreCopy("source", src); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	copied := rpt.entries["source"].temp
	if copied == "" {
		t.Fatal("StoreCopy() did not record temporary copy")
	}

	if err := rpt.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}
	if _, err := os.Stat(copied); !os.IsNotExist(err) {
		t.Errorf("temporary copy %s still exists", copied)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("stored source file should not be removed, but got error: %v", err)
	}
}

func TestReport_ManifestOrder(t *testing.T) {
	tmpDir := t.TempDir()
	r := &ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	rpt, err := r.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	var wg sync.WaitGroup
	for _, name := range []string{"page-10", "page-2", "page-1"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rpt.StoreData(name, []byte(name))
		}()
	}
	wg.Wait()
	rpt.StoreData("page-1", []byte("again"))

	if err := rpt.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}

	arc, err := zip.OpenReader(rpt.Name())
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer arc.Close()

	var names []string
	var manifest string
	for _, f := range arc.File {
		if f.Name == "MANIFEST" {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open manifest: %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			manifest = string(data)
			continue
		}
		names = append(names, f.Name)
	}
	if len(names) != 4 {
		t.Fatalf("report entries = %v, want 4", names)
	}
	if names[0] != "page-1" || !strings.HasPrefix(names[1], "page-1-") || names[2] != "page-2" || names[3] != "page-10" {
		t.Errorf("entries order = %v", names)
	}
	if !strings.Contains(manifest, "page-10") {
		t.Errorf("manifest misses entries:\n%s", manifest)
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	r.StoreData("ignored", nil)
	if err := r.StoreCopy("ignored", "/nonexistent"); err != nil {
		t.Errorf("StoreCopy on nil report should not error, got: %v", err)
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}

func TestReportStoreCopy_Sources(t *testing.T) {
	tmpDir := t.TempDir()
	pages := filepath.Join(tmpDir, "pages")
	if err := os.MkdirAll(filepath.Join(pages, "book"), 0755); err != nil {
		t.Fatal(err)
	}
	for name, text := range map[string]string{"book/folio-1.mei": "<mei>1</mei>", "book.zip": "zip bytes"} {
		if err := os.WriteFile(filepath.Join(pages, name), []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
	}

	dest := filepath.Join(tmpDir, "report.zip")
	rpt, err := (&ReporterConfig{Destination: dest}).Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if err := rpt.StoreCopy("dir", filepath.Join(pages, "book")); err != nil {
		t.Fatalf("StoreCopy(dir) error = %v", err)
	}
	if err := rpt.StoreCopy("inside", filepath.Join(pages, "book.zip", "folio-2.mei")); err != nil {
		t.Fatalf("StoreCopy(inside archive) error = %v", err)
	}
	if err := rpt.StoreCopy("missing", filepath.Join(tmpDir, "nope", "folio-3.mei")); err == nil {
		t.Error("StoreCopy(missing) expected error")
	}
	if err := rpt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("failed to open report: %v", err)
	}
	defer zr.Close()

	want := map[string]string{"dir/folio-1.mei": "<mei>1</mei>", "inside": "zip bytes"}
	for name, text := range want {
		f, err := zr.Open(name)
		if err != nil {
			t.Errorf("report misses %s: %v", name, err)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil || string(data) != text {
			t.Errorf("%s = %q, %v, want %q", name, data, err, text)
		}
	}
}
