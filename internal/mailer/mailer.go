package mailer

import "time"

// RowFailure describes one CSV row that could not be imported.
type RowFailure struct {
	Line   int      `json:"line"`
	Values []string `json:"values"`
	Reason string   `json:"reason"`
}

// ImportReport summarizes one completed import run. A row contributes to at
// most one of the three counters.
type ImportReport struct {
	Processed  int          `json:"processed"`
	Failed     int          `json:"failed"`
	Duplicated int          `json:"duplicated"`
	Failures   []RowFailure `json:"failures,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Mailer delivers import outcome notifications to the owner's email address.
type Mailer interface {
	SendImportReport(to string, report ImportReport) error
	SendImportError(to string, message string, timestamp time.Time) error
}
