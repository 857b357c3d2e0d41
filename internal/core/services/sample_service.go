package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"seqlab.portal/internal/core/domain"
	"seqlab.portal/internal/core/ports"
)

// maxRecursiveDepth bounds the FASTQ directory walk.
const maxRecursiveDepth = 5

// sourceMap translates the sample source code from the file name into the
// label shown in the sample picker.
var sourceMap = map[string]string{
	"L":   "Lebensmittel",
	"H":   "Humanmedizinisch",
	"V":   "Veterinärmedizinisch",
	"U":   "Umgebung",
	"R":   "Referenz",
	"TA":  "Tierart",
	"NTC": "Negativkontrolle",
	"PTC": "Positivkontrolle",
}

// patternUniversal matches IonTorrent, Illumina and Illumina control
// (NTC/PTC) FASTQ naming schemes in one pass.
var patternUniversal = regexp.MustCompile(`(?i)(?:` +
	// IonTorrent
	`\.R_(?P<ion_run>\d{4}_\d{2}_\d{2})_\d{2}_\d{2}_\d{2}_user_.*?-(?P<ion_source>[LHVUR]|TA|NTC|PTC)_(?P<ion_date>\d{8})\.IonXpress_(?P<ion_sample>\d{3})\.fastq(?:\.gz)?` +
	`|` +
	// Illumina
	`(?:(?P<illumina_source>[LHVUR])-(?P<illumina_id>[A-Za-z0-9\-]+)_S\d+_L\d{3}_R[12]_001)\.fastq(?:\.gz)?` +
	`|` +
	// Illumina NTC / PTC
	`(?P<special_source>NTC|PTC)_S\d+_L\d{3}_R[12]_001\.fastq(?:\.gz)?` +
	`)$`)

// SampleService discovers sequencing samples from FASTQ files and serves
// the folder browser.
type SampleService struct {
	validator *PathValidator
	cache     ports.FolderCache
	log       *slog.Logger
}

func NewSampleService(validator *PathValidator, cache ports.FolderCache, log *slog.Logger) *SampleService {
	return &SampleService{
		validator: validator,
		cache:     cache,
		log:       log,
	}
}

// GetSamples lists the samples found in folderPath. With recursive set,
// subdirectories are searched up to maxRecursiveDepth.
func (s *SampleService) GetSamples(folderPath string, recursive bool) ([]domain.Sample, error) {
	validated, err := s.validator.ValidateAny(folderPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(validated)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("Pfad ist kein gültiger Ordner")
	}

	samples := s.extractSamples(validated, recursive)
	s.log.Info("samples discovered", "path", folderPath, "count", len(samples), "recursive", recursive)
	return samples, nil
}

func (s *SampleService) extractSamples(folderPath string, recursive bool) []domain.Sample {
	var files []string
	if recursive {
		files = s.findFastqFiles(folderPath, 0)
	} else {
		entries, err := os.ReadDir(folderPath)
		if err != nil {
			s.log.Error("scan directory failed", "path", folderPath, "error", err)
			return nil
		}
		for _, entry := range entries {
			if !entry.IsDir() && isFastq(entry.Name()) {
				files = append(files, filepath.Join(folderPath, entry.Name()))
			}
		}
	}

	seen := make(map[string]bool)
	var samples []domain.Sample

	for _, file := range files {
		sample, ok := parseSampleName(filepath.Base(file), filepath.Dir(file))
		if !ok {
			continue
		}
		if seen[sample.Key] {
			continue
		}
		seen[sample.Key] = true
		samples = append(samples, sample)
	}

	return samples
}

func (s *SampleService) findFastqFiles(folderPath string, depth int) []string {
	if depth > maxRecursiveDepth {
		s.log.Warn("maximum recursion depth reached", "path", folderPath)
		return nil
	}

	entries, err := os.ReadDir(folderPath)
	if err != nil {
		s.log.Error("scan directory failed", "path", folderPath, "error", err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		full := filepath.Join(folderPath, entry.Name())
		switch {
		case !entry.IsDir() && isFastq(entry.Name()):
			files = append(files, full)
		case entry.IsDir() && !strings.HasPrefix(entry.Name(), "."):
			files = append(files, s.findFastqFiles(full, depth+1)...)
		}
	}
	return files
}

func isFastq(name string) bool {
	if strings.HasPrefix(name, "Undetermined_") {
		return false
	}
	return strings.HasSuffix(name, ".fastq.gz") || strings.HasSuffix(name, ".fastq")
}

// parseSampleName reconstructs a sample from one FASTQ file name.
func parseSampleName(fileName, dir string) (domain.Sample, bool) {
	m := patternUniversal.FindStringSubmatch(fileName)
	if m == nil {
		return domain.Sample{}, false
	}

	group := func(name string) string {
		idx := patternUniversal.SubexpIndex(name)
		if idx < 0 {
			return ""
		}
		return m[idx]
	}

	switch {
	case group("ion_source") != "":
		source := group("ion_source")
		sampleDate := group("ion_date")
		sampleNum := group("ion_sample")
		// ddmmyyyy on disk, dd-mm-yy style key mirrors the legacy UI.
		formatted := fmt.Sprintf("%s-%s-%s", sampleDate[4:], sampleDate[2:4], sampleDate[:2])
		return domain.Sample{
			Key:          fmt.Sprintf("%s-%s_S%s", source, formatted, sampleNum),
			Source:       sourceLabel(source),
			Probennummer: fmt.Sprintf("%s_S%s", formatted, sampleNum),
			FilePath:     dir,
			RunDate:      strings.ReplaceAll(group("ion_run"), "_", "-"),
			SampleDate:   sampleDate,
		}, true

	case group("illumina_source") != "":
		source := group("illumina_source")
		id := group("illumina_id")
		return domain.Sample{
			Key:          fmt.Sprintf("%s-%s", source, id),
			Source:       sourceLabel(source),
			Probennummer: id,
			FilePath:     dir,
		}, true

	case group("special_source") != "":
		source := group("special_source")
		return domain.Sample{
			Key:          source,
			Source:       sourceLabel(source),
			Probennummer: source,
			FilePath:     dir,
		}, true
	}

	return domain.Sample{}, false
}

func sourceLabel(code string) string {
	if label, ok := sourceMap[strings.ToUpper(code)]; ok {
		return label
	}
	return code
}

// BrowseFolder lists subdirectories of path, serving from the redis cache
// when the listing is fresh (the adapter owns the TTL).
func (s *SampleService) BrowseFolder(ctx context.Context, path string) ([]domain.Folder, string, error) {
	if path == "" {
		path = s.validator.BaseFor(domain.AnalysisTypes[0])
	}

	validated, err := s.validator.ValidateAny(path)
	if err != nil {
		return nil, "", err
	}

	if s.cache != nil {
		if folders, ok := s.cache.GetFolders(ctx, validated); ok {
			return folders, validated, nil
		}
	}

	entries, err := os.ReadDir(validated)
	if err != nil {
		s.log.Error("list folders failed", "path", validated, "error", err)
		return []domain.Folder{}, validated, nil
	}

	folders := make([]domain.Folder, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, domain.Folder{
				Name: entry.Name(),
				Path: filepath.Join(validated, entry.Name()),
			})
		}
	}

	sort.Slice(folders, func(i, j int) bool {
		return strings.ToLower(folders[i].Name) < strings.ToLower(folders[j].Name)
	})

	if s.cache != nil {
		if err := s.cache.SetFolders(ctx, validated, folders); err != nil {
			s.log.Warn("folder cache write failed", "path", validated, "error", err)
		}
	}

	return folders, validated, nil
}
