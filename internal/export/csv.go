// Package export renders the subscriber list as a CSV file.
//
// The same writer backs the admin download endpoint and the `export` CLI
// command, so both produce byte-identical files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/heyfriend/landing/internal/model"
)

// ContentType is sent with the download.
const ContentType = "text/csv; charset=utf-8"

// DateLayout formats the "Date Subscribed" column. Times are written in UTC.
const DateLayout = "2006-01-02 15:04:05"

var header = []string{"Email", "Date Subscribed"}

// WriteCSV writes a header row followed by one row per subscriber, in the
// order given. encoding/csv quotes fields containing commas, quotes or
// newlines.
func WriteCSV(w io.Writer, subscribers []model.Subscriber) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: writing header: %w", err)
	}

	for _, s := range subscribers {
		row := []string{s.Email, s.CreatedAt.UTC().Format(DateLayout)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: writing subscriber %d: %w", s.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flushing: %w", err)
	}
	return nil
}

// Filename returns the download name for an export taken at now,
// e.g. heyfriend-emails-2025-08-12.csv.
func Filename(now time.Time) string {
	return "heyfriend-emails-" + now.UTC().Format("2006-01-02") + ".csv"
}
