package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"seqlab.portal/internal/core/domain"
)

func newTestSampleService(t *testing.T) (*SampleService, string) {
	t.Helper()
	base := t.TempDir()
	validator := NewPathValidator(map[domain.AnalysisType]string{
		domain.AnalysisWGS:     base,
		domain.AnalysisSpecies: t.TempDir(),
	})
	return NewSampleService(validator, nil, slog.New(slog.DiscardHandler)), base
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGetSamplesIllumina(t *testing.T) {
	svc, base := newTestSampleService(t)

	touch(t, filepath.Join(base, "L-24-0042_S1_L001_R1_001.fastq.gz"))
	touch(t, filepath.Join(base, "L-24-0042_S1_L001_R2_001.fastq.gz")) // paired read, same sample
	touch(t, filepath.Join(base, "H-99_S2_L001_R1_001.fastq"))
	touch(t, filepath.Join(base, "NTC_S3_L001_R1_001.fastq.gz"))
	touch(t, filepath.Join(base, "Undetermined_S0_L001_R1_001.fastq.gz")) // skipped
	touch(t, filepath.Join(base, "notes.txt"))

	samples, err := svc.GetSamples(base, false)
	if err != nil {
		t.Fatalf("GetSamples() error = %v", err)
	}

	if len(samples) != 3 {
		t.Fatalf("sample count = %d, want 3: %+v", len(samples), samples)
	}

	byKey := make(map[string]domain.Sample)
	for _, s := range samples {
		byKey[s.Key] = s
	}

	food, ok := byKey["L-24-0042"]
	if !ok {
		t.Fatalf("missing sample L-24-0042 in %v", byKey)
	}
	if food.Source != "Lebensmittel" {
		t.Errorf("source = %q, want Lebensmittel", food.Source)
	}
	if food.Probennummer != "24-0042" {
		t.Errorf("probennummer = %q, want 24-0042", food.Probennummer)
	}

	if _, ok := byKey["NTC"]; !ok {
		t.Errorf("missing control sample NTC in %v", byKey)
	}
}

func TestGetSamplesIonTorrent(t *testing.T) {
	svc, base := newTestSampleService(t)

	touch(t, filepath.Join(base, "x.R_2024_10_09_12_30_00_user_run-V_09102024.IonXpress_003.fastq.gz"))

	samples, err := svc.GetSamples(base, false)
	if err != nil {
		t.Fatalf("GetSamples() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("sample count = %d, want 1", len(samples))
	}

	s := samples[0]
	if s.Source != "Veterinärmedizinisch" {
		t.Errorf("source = %q, want Veterinärmedizinisch", s.Source)
	}
	if s.RunDate != "2024-10-09" {
		t.Errorf("run date = %q, want 2024-10-09", s.RunDate)
	}
	if s.Probennummer != "2024-10-09_S003" {
		t.Errorf("probennummer = %q", s.Probennummer)
	}
}

func TestGetSamplesRecursive(t *testing.T) {
	svc, base := newTestSampleService(t)

	touch(t, filepath.Join(base, "sub1", "L-1_S1_L001_R1_001.fastq.gz"))
	touch(t, filepath.Join(base, "sub1", "sub2", "H-2_S2_L001_R1_001.fastq.gz"))
	touch(t, filepath.Join(base, ".hidden", "V-3_S3_L001_R1_001.fastq.gz")) // hidden dirs skipped

	flat, err := svc.GetSamples(base, false)
	if err != nil {
		t.Fatalf("GetSamples() error = %v", err)
	}
	if len(flat) != 0 {
		t.Errorf("non-recursive count = %d, want 0", len(flat))
	}

	recursive, err := svc.GetSamples(base, true)
	if err != nil {
		t.Fatalf("GetSamples(recursive) error = %v", err)
	}
	if len(recursive) != 2 {
		t.Errorf("recursive count = %d, want 2: %+v", len(recursive), recursive)
	}
}

func TestGetSamplesRejectsFile(t *testing.T) {
	svc, base := newTestSampleService(t)
	touch(t, filepath.Join(base, "file.txt"))

	if _, err := svc.GetSamples(filepath.Join(base, "file.txt"), false); err == nil {
		t.Error("expected error for non-directory path")
	}
}

func TestBrowseFolder(t *testing.T) {
	svc, base := newTestSampleService(t)

	for _, name := range []string{"Zrun", "arun", "Brun"} {
		if err := os.Mkdir(filepath.Join(base, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	touch(t, filepath.Join(base, "loose.fastq"))

	folders, current, err := svc.BrowseFolder(context.Background(), base)
	if err != nil {
		t.Fatalf("BrowseFolder() error = %v", err)
	}
	if current != base {
		t.Errorf("current = %q, want %q", current, base)
	}
	if len(folders) != 3 {
		t.Fatalf("folder count = %d, want 3", len(folders))
	}

	// Case-insensitive sort order.
	want := []string{"arun", "Brun", "Zrun"}
	for i, f := range folders {
		if f.Name != want[i] {
			t.Errorf("folders[%d] = %q, want %q", i, f.Name, want[i])
		}
	}
}
