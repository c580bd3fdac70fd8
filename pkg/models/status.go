package models

// CategoryStatus represents the outcome of processing one category
type CategoryStatus string

const (
	CategoryStatusUnset   CategoryStatus = ""        // Zero value = unset/unknown
	CategoryStatusSuccess CategoryStatus = "success" // Audio (and image, if any) downloaded
	CategoryStatusPartial CategoryStatus = "partial" // Audio downloaded but the image leg failed, or vice versa
	CategoryStatusSkipped CategoryStatus = "skipped" // Destination directory already populated, no network access
	CategoryStatusFailed  CategoryStatus = "failed"  // Fetch, extraction, or the audio download failed
)

// String implements fmt.Stringer for logging
func (s CategoryStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s CategoryStatus) IsValid() bool {
	switch s {
	case CategoryStatusSuccess, CategoryStatusPartial, CategoryStatusSkipped, CategoryStatusFailed:
		return true
	}
	return false
}

// CategoryResult pairs a category with its outcome for the run summary.
type CategoryResult struct {
	Category  string
	Status    CategoryStatus
	ErrorType string // Error category (on failure/partial), empty otherwise
}
