package transcript

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FileFormat identifies a downloaded transcript file.
type FileFormat string

const (
	FileVTT  FileFormat = "vtt"
	FileText FileFormat = "txt"
)

// UnknownSpeaker labels cues the client did not attribute to anyone.
const UnknownSpeaker = "Unknown"

// ParseFileFormat accepts "vtt" or "txt" in any case.
func ParseFileFormat(s string) (FileFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vtt", "webvtt":
		return FileVTT, nil
	case "txt", "text":
		return FileText, nil
	}
	return "", fmt.Errorf("unknown transcript file format %q (use vtt or txt)", s)
}

// DetectFileFormat picks the format from the file extension, then from a
// WEBVTT signature at the start of the content.
func DetectFileFormat(name string, head []byte) FileFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vtt":
		return FileVTT
	case ".txt":
		return FileText
	}
	if strings.HasPrefix(strings.TrimPrefix(string(head), "\ufeff"), "WEBVTT") {
		return FileVTT
	}
	return FileText
}

// ParseFile reads a transcript file in format and reconciles its entries.
// A UTF-8 or UTF-16 byte order mark selects the decoding; without one the
// input is read as UTF-8.
func ParseFile(r io.Reader, format FileFormat) ([]Entry, error) {
	var (
		entries []Entry
		err     error
	)
	r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	switch format {
	case FileVTT:
		entries, err = ParseVTT(r)
	case FileText:
		entries, err = ParseTextFile(r)
	default:
		return nil, fmt.Errorf("unknown transcript file format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return Reconcile(entries), nil
}

var (
	// 1 "Speaker Name" (1262511360), the id is optional
	vttSpeakerHeader = regexp.MustCompile(`^\d+\s+"([^"]*)"(?:\s+\(\d+\))?$`)

	// 00:00:05.579 --> 00:00:06.858, hours optional
	vttCueTiming = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2})[.,]\d{3}\s+-->`)

	// <v Speaker Name>text</v>
	vttVoiceSpan = regexp.MustCompile(`^<v(?:\.[^\s>]+)?\s+([^>]+)>(.*?)(?:</v>)?$`)
)

type vttCue struct {
	speaker string
	start   string
	text    []string
}

// ParseVTT reads a WebVTT transcript. Speakers come from either a numbered
// "Name" header line or a <v Name> voice span; cue text lines are joined
// with spaces.
func ParseVTT(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries []Entry
		cue     *vttCue
		inNote  bool
	)

	flush := func() {
		if cue == nil || len(cue.text) == 0 {
			cue = nil
			return
		}
		speaker := cue.speaker
		if speaker == "" {
			speaker = UnknownSpeaker
		}
		entries = append(entries, Entry{
			Speaker:   speaker,
			Timestamp: cue.start,
			Text:      strings.Join(cue.text, " "),
		})
		cue = nil
	}

	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
			first = false
		}

		if line == "" {
			inNote = false
			flush()
			continue
		}
		if strings.HasPrefix(line, "WEBVTT") {
			continue
		}
		if line == "NOTE" || strings.HasPrefix(line, "NOTE ") {
			inNote = true
			continue
		}
		if inNote {
			continue
		}

		if m := vttSpeakerHeader.FindStringSubmatch(line); m != nil {
			flush()
			cue = &vttCue{speaker: strings.TrimSpace(m[1])}
			continue
		}

		if m := vttCueTiming.FindStringSubmatch(line); m != nil {
			if cue == nil || cue.start != "" || len(cue.text) > 0 {
				flush()
				cue = &vttCue{}
			}
			cue.start = Clock(Seconds(m[1]))
			continue
		}

		if cue == nil {
			// cue identifiers and stray text outside a cue
			continue
		}

		text := line
		if m := vttVoiceSpan.FindStringSubmatch(line); m != nil {
			if cue.speaker == "" {
				cue.speaker = strings.TrimSpace(m[1])
			}
			text = strings.TrimSpace(m[2])
		}
		if text != "" {
			cue.text = append(cue.text, text)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vtt transcript: %w", err)
	}
	return entries, nil
}

// 0:11 : Speaker Name : text, or 1:02:03 : Speaker Name : text
var textTranscriptLine = regexp.MustCompile(`^(\d+:\d{2}(?::\d{2})?)\s*:\s*([^:]+?)\s*:\s*(.+)$`)

// ParseTextFile reads the plain "timestamp : speaker : text" export. Lines
// that do not have that shape are skipped.
func ParseTextFile(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		m := textTranscriptLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, Entry{
			Speaker:   m[2],
			Timestamp: m[1],
			Text:      strings.TrimSpace(m[3]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading text transcript: %w", err)
	}
	return entries, nil
}

// Clock formats seconds the way the client displays timestamps: M:SS below
// an hour, H:MM:SS from then on.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Speakers lists the distinct speakers of entries as participants, in order
// of first appearance. The unattributed label is left out.
func Speakers(entries []Entry) []Participant {
	seen := make(map[string]bool)
	var out []Participant
	for _, e := range entries {
		name := strings.TrimSpace(e.Speaker)
		if name == "" || name == UnknownSpeaker || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Participant{Name: name})
	}
	return out
}
