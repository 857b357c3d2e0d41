package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"seqlab.portal/internal/core/domain"
)

func testValidator() *PathValidator {
	return NewPathValidator(map[domain.AnalysisType]string{
		domain.AnalysisWGS:     "/bacteria",
		domain.AnalysisSpecies: "/animalSpecies",
	})
}

func TestValidatePath(t *testing.T) {
	v := testValidator()

	tests := []struct {
		name    string
		path    string
		jobType domain.AnalysisType
		want    string
		wantErr error
	}{
		{
			name:    "path inside wgs base",
			path:    "/bacteria/run42",
			jobType: domain.AnalysisWGS,
			want:    "/bacteria/run42",
		},
		{
			name:    "base itself is allowed",
			path:    "/animalSpecies",
			jobType: domain.AnalysisSpecies,
			want:    "/animalSpecies",
		},
		{
			name:    "empty path",
			path:    "",
			jobType: domain.AnalysisWGS,
			wantErr: ErrEmptyPath,
		},
		{
			name:    "path outside base",
			path:    "/etc/passwd",
			jobType: domain.AnalysisWGS,
			wantErr: ErrPathOutsideBase,
		},
		{
			name:    "traversal escapes base",
			path:    "/bacteria/../etc",
			jobType: domain.AnalysisWGS,
			wantErr: ErrPathOutsideBase,
		},
		{
			name:    "prefix sibling does not count",
			path:    "/bacteriaEvil/run",
			jobType: domain.AnalysisWGS,
			wantErr: ErrPathOutsideBase,
		},
		{
			name:    "species path against wgs base",
			path:    "/animalSpecies/run",
			jobType: domain.AnalysisWGS,
			wantErr: ErrPathOutsideBase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(tt.path, tt.jobType)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate(%q) error = %v, want %v", tt.path, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%q) error = %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("Validate(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidateAnyDetectsType(t *testing.T) {
	v := testValidator()

	if got, err := v.ValidateAny("/animalSpecies/run1"); err != nil || got != "/animalSpecies/run1" {
		t.Errorf("ValidateAny() = %q, %v", got, err)
	}
	if _, err := v.ValidateAny("/somewhere/else"); !errors.Is(err, ErrPathOutsideBase) {
		t.Errorf("err = %v, want ErrPathOutsideBase", err)
	}
}

func TestTruncateLog(t *testing.T) {
	short := "a short log"
	if got := TruncateLog(short); got != short {
		t.Errorf("short log must pass through unchanged")
	}

	long := strings.Repeat("x", MaxLogSize+100)
	got := TruncateLog(long)
	if !strings.HasSuffix(got, "\n[INFO] Log gekürzt...") {
		t.Errorf("truncated log missing marker suffix")
	}
	if len(got) != MaxLogSize+len("\n[INFO] Log gekürzt...") {
		t.Errorf("truncated length = %d", len(got))
	}
}

func TestGenerateJobCode(t *testing.T) {
	// Layout: <type><yymmdd>_<NN>
	got := domain.GenerateJobCode(domain.AnalysisWGS, mustTime(t, "2024-10-09T08:00:00Z"), 1)
	if got != "wgs241009_01" {
		t.Errorf("GenerateJobCode() = %q, want wgs241009_01", got)
	}

	got = domain.GenerateJobCode(domain.AnalysisSpecies, mustTime(t, "2025-01-02T08:00:00Z"), 12)
	if got != "species250102_12" {
		t.Errorf("GenerateJobCode() = %q, want species250102_12", got)
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}
