package export

import "strings"

// Markdown renders doc as a heading, an optional date line, a rule, and one
// level-3 section per entry in order.
func Markdown(doc Document, includeTimestamps bool) string {
	var b strings.Builder

	title := doc.Meeting.Title
	if title == "" {
		title = DefaultTitle
	}
	b.WriteString("# " + title + "\n\n")

	if doc.Meeting.DateTime != "" {
		b.WriteString("**Date:** " + doc.Meeting.DateTime + "\n\n")
	}

	b.WriteString("---\n\n")

	for _, e := range doc.Entries {
		b.WriteString("### " + e.Speaker)
		if includeTimestamps && e.Timestamp != "" {
			b.WriteString(" — " + e.Timestamp)
		}
		b.WriteString("\n\n")
		b.WriteString(e.Text + "\n\n")
	}

	return b.String()
}
