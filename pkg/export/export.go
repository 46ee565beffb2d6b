// Package export renders extracted transcripts as Markdown or JSON documents.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// DefaultTitle heads documents for meetings without a recognizable title.
const DefaultTitle = "Meeting Transcript"

// Format selects the document encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts "markdown", "md" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (use markdown or json)", s)
}

// Document is everything one export contains.
type Document struct {
	Meeting      transcript.MeetingInfo   `json:"meeting"`
	Participants []transcript.Participant `json:"participants"`
	Entries      []transcript.Entry       `json:"entries"`
	ExportedAt   time.Time                `json:"exported_at"`
}

// Render encodes doc in format.
func Render(doc Document, format Format, includeTimestamps bool) ([]byte, error) {
	switch format {
	case FormatJSON:
		return JSON(doc, includeTimestamps)
	case FormatMarkdown:
		return []byte(Markdown(doc, includeTimestamps)), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// Filename picks the conventional file name for doc in format.
func Filename(doc Document, format Format) string {
	if format == FormatJSON {
		return JSONFilename(doc.Meeting, doc.ExportedAt)
	}
	return MarkdownFilename(doc.Meeting, doc.ExportedAt)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9]`)

const maxFilenameStem = 50

// MarkdownFilename is transcript_<YYYYMMDD>.md, dated by the meeting when known.
func MarkdownFilename(info transcript.MeetingInfo, now time.Time) string {
	date := info.DateFormatted
	if date == "" {
		date = now.Format("20060102")
	}
	return "transcript_" + date + ".md"
}

// JSONFilename is the title reduced to ASCII letters, digits and underscores,
// cut to 50 characters, then the export date.
func JSONFilename(info transcript.MeetingInfo, now time.Time) string {
	stem := info.Title
	if stem == "" {
		stem = "transcript"
	}
	stem = unsafeFilenameChars.ReplaceAllString(stem, "_")
	if len(stem) > maxFilenameStem {
		stem = stem[:maxFilenameStem]
	}
	return stem + "_" + now.UTC().Format("2006-01-02") + ".json"
}

// Write stores data as dir/name and returns the full path.
func Write(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}
