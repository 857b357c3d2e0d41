package domain

// Sample is one sequencing sample reconstructed from FASTQ file names.
type Sample struct {
	Key          string `json:"key"`
	Source       string `json:"source"`
	Probennummer string `json:"probennummer"`
	FilePath     string `json:"file_path"`
	RunDate      string `json:"run_date,omitempty"`
	SampleDate   string `json:"original_sample_date,omitempty"`
}

// Folder is a single directory entry from the browse endpoint.
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}
