package models

// CategoryLink represents one sound category discovered on the listing page.
// Name doubles as the output directory name, so it must already be
// filesystem-safe when constructed.
type CategoryLink struct {
	Name      string // Display text of the listing entry, sanitized
	DetailURL string // Absolute URL of the category detail page
}

// SoundRecord holds everything extracted from a single detail page.
// AudioURL is required; the remaining fields are optional and empty when the
// corresponding element was not present on the page.
type SoundRecord struct {
	Title     string // Page title, used to derive filenames
	AudioURL  string // Absolute URL of the mp3 asset
	ImageURL  string // Absolute URL of the companion jpg, "" if none
	Credit    string // Figure credit text, slashes replaced for filename safety
	DateTaken string // Date in YYYY-MM-DD form, "" if none
}

// HasImage reports whether the record carries a companion image.
func (r *SoundRecord) HasImage() bool {
	return r.ImageURL != ""
}

// AudioFilename returns the filename for the audio asset: "<title>.mp3".
func (r *SoundRecord) AudioFilename() string {
	return r.Title + ".mp3"
}

// ImageFilename returns the filename for the companion image:
// "<title>_<credit>_<date>.jpg" with absent segments (and their separators)
// omitted.
func (r *SoundRecord) ImageFilename() string {
	name := r.Title
	if r.Credit != "" {
		name += "_" + r.Credit
	}
	if r.DateTaken != "" {
		name += "_" + r.DateTaken
	}
	return name + ".jpg"
}
