package models

import "time"

// PhotoRecord is one geotagged photo row handed over by the dataset producer.
// Records are never mutated after loading.
type PhotoRecord struct {
	ID    string  `json:"id"`
	User  string  `json:"user"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"long"`
	Tags  string  `json:"tags,omitempty"`
	Title string  `json:"title,omitempty"`

	// DateTaken is the raw capture timestamp; empty when the source cell was null.
	DateTaken string `json:"date_taken,omitempty"`
}

// PhotoURL returns the public page of the photo on Flickr.
func (p PhotoRecord) PhotoURL() string {
	return "https://www.flickr.com/photos/" + p.User + "/" + p.ID
}

// TimestampLayouts are the capture-date formats accepted by ParseDateTaken.
var TimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDateTaken parses the record's capture timestamp using TimestampLayouts.
func (p PhotoRecord) ParseDateTaken() (time.Time, bool) {
	if p.DateTaken == "" {
		return time.Time{}, false
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, p.DateTaken); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
