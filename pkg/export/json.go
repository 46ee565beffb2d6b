package export

import (
	"encoding/json"
	"fmt"
	"time"
)

type jsonMeeting struct {
	Title    string `json:"title"`
	DateTime string `json:"dateTime"`
	URL      string `json:"url"`
}

type jsonParticipant struct {
	Name          string  `json:"name"`
	Role          *string `json:"role"`
	IsCurrentUser bool    `json:"isCurrentUser"`
}

type jsonEntry struct {
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

type jsonDocument struct {
	Meeting      jsonMeeting       `json:"meeting"`
	Participants []jsonParticipant `json:"participants"`
	ExportedAt   string            `json:"exportedAt"`
	EntryCount   int               `json:"entryCount"`
	Transcript   []jsonEntry       `json:"transcript"`
}

// JSON renders doc in the camelCase layout downstream tools read. Roles are
// null when absent; timestamps are omitted unless includeTimestamps is set.
func JSON(doc Document, includeTimestamps bool) ([]byte, error) {
	out := jsonDocument{
		Meeting: jsonMeeting{
			Title:    doc.Meeting.Title,
			DateTime: doc.Meeting.DateTime,
			URL:      doc.Meeting.URL,
		},
		Participants: make([]jsonParticipant, 0, len(doc.Participants)),
		ExportedAt:   doc.ExportedAt.UTC().Format(time.RFC3339Nano),
		EntryCount:   len(doc.Entries),
		Transcript:   make([]jsonEntry, 0, len(doc.Entries)),
	}

	for _, p := range doc.Participants {
		jp := jsonParticipant{Name: p.Name, IsCurrentUser: p.IsCurrentUser}
		if p.Role != "" {
			role := p.Role
			jp.Role = &role
		}
		out.Participants = append(out.Participants, jp)
	}

	for _, e := range doc.Entries {
		je := jsonEntry{Speaker: e.Speaker, Text: e.Text}
		if includeTimestamps {
			je.Timestamp = e.Timestamp
		}
		out.Transcript = append(out.Transcript, je)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}
