package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

const numberedVTT = `WEBVTT

1 "" (0)
00:00:00.000 --> 00:00:05.579
Okay, that sounds good.

2 "Alan Dickens" (1262511360)
00:00:05.579 --> 00:00:06.858
Go.

3 "Mitul Mehta" (3330436864)
00:00:06.858 --> 00:00:34.950
Thanks everyone for joining today.
This is the agenda.
`

func TestParseVTT_NumberedSpeakers(t *testing.T) {
	entries, err := ParseVTT(strings.NewReader(numberedVTT))
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Speaker: UnknownSpeaker, Timestamp: "0:00", Text: "Okay, that sounds good."},
		{Speaker: "Alan Dickens", Timestamp: "0:05", Text: "Go."},
		{Speaker: "Mitul Mehta", Timestamp: "0:06", Text: "Thanks everyone for joining today. This is the agenda."},
	}, entries)
}

func TestParseVTT_VoiceSpans(t *testing.T) {
	content := "\ufeffWEBVTT\n\n" +
		"NOTE generated by the meeting client\n" +
		"spanning two lines\n\n" +
		"a1b2c3/17-0\n" +
		"01:02:03.400 --> 01:02:05.000\n" +
		"<v Alice Smith>Hello there</v>\n\n" +
		"a1b2c3/18-0\n" +
		"00:04.000 --> 00:06.000\n" +
		"<v.loud Bob Jones>Hi Alice\n"

	entries, err := ParseVTT(strings.NewReader(content))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Speaker: "Alice Smith", Timestamp: "1:02:03", Text: "Hello there"}, entries[0])
	assert.Equal(t, Entry{Speaker: "Bob Jones", Timestamp: "0:04", Text: "Hi Alice"}, entries[1])
}

func TestParseVTT_SkipsCuesWithoutText(t *testing.T) {
	content := "WEBVTT\n\n1 \"Alice\" (1)\n00:00:01.000 --> 00:00:02.000\n\n"

	entries, err := ParseVTT(strings.NewReader(content))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseTextFile(t *testing.T) {
	content := "0:11 : Sara Weisman (she/her) : Hey, we didn't talk about notes.\n" +
		"not a transcript line\n" +
		"\n" +
		"12:45 : Massiel Campos : Yes: at twelve.\n" +
		"1:02:03 : Sara Weisman (she/her) : Much later.\n"

	entries, err := ParseTextFile(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Speaker: "Sara Weisman (she/her)", Timestamp: "0:11", Text: "Hey, we didn't talk about notes."},
		{Speaker: "Massiel Campos", Timestamp: "12:45", Text: "Yes: at twelve."},
		{Speaker: "Sara Weisman (she/her)", Timestamp: "1:02:03", Text: "Much later."},
	}, entries)
}

func TestParseFile_Reconciles(t *testing.T) {
	content := "1:05 : Bob : Hi Alice\n" +
		"1:02 : Alice : Hello there\n" +
		"1:02 : Alice : Hello there\n"

	entries, err := ParseFile(strings.NewReader(content), FileText)
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Speaker: "Alice", Timestamp: "1:02", Text: "Hello there"},
		{Speaker: "Bob", Timestamp: "1:05", Text: "Hi Alice"},
	}, entries)

	_, err = ParseFile(strings.NewReader(content), FileFormat("docx"))
	assert.Error(t, err)
}

func TestParseFile_UTF16(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(numberedVTT)
	require.NoError(t, err)

	entries, err := ParseFile(strings.NewReader(encoded), FileVTT)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "Alan Dickens", entries[1].Speaker)
	assert.Equal(t, "Thanks everyone for joining today. This is the agenda.", entries[2].Text)
}

func TestFileFormats(t *testing.T) {
	f, err := ParseFileFormat("WebVTT")
	require.NoError(t, err)
	assert.Equal(t, FileVTT, f)

	f, err = ParseFileFormat("text")
	require.NoError(t, err)
	assert.Equal(t, FileText, f)

	_, err = ParseFileFormat("docx")
	assert.Error(t, err)

	assert.Equal(t, FileVTT, DetectFileFormat("meeting.VTT", nil))
	assert.Equal(t, FileText, DetectFileFormat("meeting.txt", []byte("WEBVTT")))
	assert.Equal(t, FileVTT, DetectFileFormat("download", []byte("\ufeffWEBVTT\n")))
	assert.Equal(t, FileText, DetectFileFormat("download", []byte("0:11 : A : b")))
}

func TestClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{62, "1:02"},
		{3599, "59:59"},
		{3723, "1:02:03"},
		{-4, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clock(tt.seconds))
		if tt.seconds >= 0 {
			assert.Equal(t, tt.seconds, Seconds(Clock(tt.seconds)))
		}
	}
}

func TestSpeakers(t *testing.T) {
	got := Speakers([]Entry{
		{Speaker: "Alice", Text: "a"},
		{Speaker: UnknownSpeaker, Text: "b"},
		{Speaker: "Bob", Text: "c"},
		{Speaker: "Alice", Text: "d"},
	})

	assert.Equal(t, []Participant{{Name: "Alice"}, {Name: "Bob"}}, got)
}
