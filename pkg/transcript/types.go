// Package transcript extracts speaker turns and meeting metadata from
// rendered meeting client pages.
//
// Several independent extractors read the same DOM snapshot. Their candidates
// are reconciled into one time-ordered sequence of entries. Collectors drive
// scrollable pages whose transcript panel only renders a window of entries at
// a time.
package transcript

import "strings"

// Entry is one reconciled speaker turn.
type Entry struct {
	Speaker   string `json:"speaker"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// Key is the identity used for deduplication.
func (e Entry) Key() string {
	return e.Speaker + "|" + e.Timestamp + "|" + e.Text
}

// Valid reports whether the entry has both a speaker and a body.
func (e Entry) Valid() bool {
	return strings.TrimSpace(e.Speaker) != "" && strings.TrimSpace(e.Text) != ""
}

// RoleOrganizer marks the participant who owns the meeting.
const RoleOrganizer = "Organizer"

// PresenceStatus is the availability shown next to a participant.
type PresenceStatus string

const (
	StatusAvailable   PresenceStatus = "Available"
	StatusAway        PresenceStatus = "Away"
	StatusBusy        PresenceStatus = "Busy"
	StatusOffline     PresenceStatus = "Offline"
	StatusOutOfOffice PresenceStatus = "Out of office"
)

// ParsePresenceStatus accepts only the exact labels the client renders.
func ParsePresenceStatus(s string) (PresenceStatus, bool) {
	switch PresenceStatus(s) {
	case StatusAvailable, StatusAway, StatusBusy, StatusOffline, StatusOutOfOffice:
		return PresenceStatus(s), true
	}
	return "", false
}

// Participant is one attendee listed on the page.
type Participant struct {
	Name          string         `json:"name"`
	Role          string         `json:"role,omitempty"`
	IsCurrentUser bool           `json:"is_current_user"`
	Status        PresenceStatus `json:"status,omitempty"`
}

// MeetingInfo describes the meeting a transcript belongs to.
type MeetingInfo struct {
	Title         string `json:"title"`
	DateTime      string `json:"date_time"`
	URL           string `json:"url"`
	DateFormatted string `json:"date_formatted"`
}
