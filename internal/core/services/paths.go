package services

import (
	"errors"
	"path/filepath"
	"strings"

	"seqlab.portal/internal/core/domain"
)

// User-facing validation errors. The German texts are part of the UI
// compatibility surface.
var (
	ErrEmptyPath       = errors.New("Pfad ist leer")
	ErrPathOutsideBase = errors.New("Zugriff außerhalb des erlaubten Bereichs")
)

// MaxLogSize caps the log text handed to the browser.
const MaxLogSize = 1024 * 1024 // 1MB

// PathValidator confines submitted paths to the per-type analysis base
// directories.
type PathValidator struct {
	bases map[domain.AnalysisType]string
}

func NewPathValidator(bases map[domain.AnalysisType]string) *PathValidator {
	return &PathValidator{bases: bases}
}

// Validate resolves path and checks it stays below the base directory of
// the given analysis type.
func (v *PathValidator) Validate(path string, jobType domain.AnalysisType) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	base, ok := v.bases[jobType]
	if !ok {
		return v.ValidateAny(path)
	}

	return v.confine(path, base)
}

// ValidateAny detects the analysis type from the path prefix and falls
// back to the first configured base when none matches.
func (v *PathValidator) ValidateAny(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	for _, t := range domain.AnalysisTypes {
		base, ok := v.bases[t]
		if !ok {
			continue
		}
		if strings.HasPrefix(path, base) {
			return v.confine(path, base)
		}
	}

	return v.confine(path, v.bases[domain.AnalysisTypes[0]])
}

// BaseFor returns the base path for a type, for seeding the folder
// browser.
func (v *PathValidator) BaseFor(jobType domain.AnalysisType) string {
	return v.bases[jobType]
}

func (v *PathValidator) confine(path, base string) (string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	baseResolved, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}

	if resolved != baseResolved && !strings.HasPrefix(resolved, baseResolved+string(filepath.Separator)) {
		return "", ErrPathOutsideBase
	}

	return resolved, nil
}

// TruncateLog keeps the tail of oversized log content. The suffix text is
// matched by the browser UI.
func TruncateLog(logContent string) string {
	if len(logContent) <= MaxLogSize {
		return logContent
	}
	return logContent[len(logContent)-MaxLogSize:] + "\n[INFO] Log gekürzt..."
}
