package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recap-cli/config"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// writeStructured encodes v as JSON or YAML. It reports false for text output.
func writeStructured(w io.Writer, format config.OutputFormat, v interface{}) (bool, error) {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(v)
	}
	return false, nil
}

func printMeetingInfo(w io.Writer, info transcript.MeetingInfo) {
	fmt.Fprintf(w, "Title:     %s\n", valueOrDefault(info.Title, "(unknown)"))
	fmt.Fprintf(w, "Date:      %s\n", valueOrDefault(info.DateTime, "(unknown)"))
	if info.DateFormatted != "" {
		fmt.Fprintf(w, "Date key:  %s\n", info.DateFormatted)
	}
	fmt.Fprintf(w, "URL:       %s\n", info.URL)
}

func printParticipants(w io.Writer, participants []transcript.Participant) {
	if len(participants) == 0 {
		fmt.Fprintln(w, "No participants found.")
		return
	}
	fmt.Fprintf(w, "Participants (%d):\n", len(participants))
	for _, p := range participants {
		line := "  " + p.Name
		var tags []string
		if p.Role != "" {
			tags = append(tags, p.Role)
		}
		if p.IsCurrentUser {
			tags = append(tags, "you")
		}
		if p.Status != "" {
			tags = append(tags, string(p.Status))
		}
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func printEntries(w io.Writer, entries []transcript.Entry) {
	for _, e := range entries {
		if e.Timestamp != "" {
			fmt.Fprintf(w, "[%s] %s: %s\n", e.Timestamp, e.Speaker, e.Text)
		} else {
			fmt.Fprintf(w, "%s: %s\n", e.Speaker, e.Text)
		}
	}
	fmt.Fprintf(w, "\n%d entries\n", len(entries))
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
