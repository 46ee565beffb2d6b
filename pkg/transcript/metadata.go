package transcript

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
)

// Metadata patterns
var (
	// "Tuesday, January 14, 2025 10:00 AM - 11:00 AM"
	dateRangeRegex = regexp.MustCompile(`(?i)\w+,\s+\w+\s+\d{1,2},\s+\d{4}\s+\d{1,2}:\d{2}\s*(AM|PM)\s*-\s*\d{1,2}:\d{2}\s*(AM|PM)`)

	// "Tuesday, January 14, 2025"
	bareDateRegex = regexp.MustCompile(`(?i)\w+,\s+\w+\s+\d{1,2},\s+\d{4}`)

	// "January 14, 2025" inside either of the above
	monthDayYearRegex = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2}),\s+(\d{4})`)

	// Participant list chrome: action buttons and bare counts
	participantSkipRegex = regexp.MustCompile(`(?i)^(Add|Leave|Remove|People|\d+$)`)

	participantNameRegex = regexp.MustCompile(`^[A-Za-z]`)
)

// Selectors for metadata lookups.
const (
	titleSelector = `h1, h2, [role="heading"]`
)

var participantSelectors = []string{`[role="menuitem"]`, `[role="listitem"]`, `[class*="participant"]`}

// Headings that label client panes rather than the meeting.
var genericTitles = map[string]bool{
	"Chat": true, "Content": true, "Oops": true,
	"Notes": true, "Transcript": true, "Recap": true,
}

const (
	minTitleLength       = 5
	minParticipantLength = 2
	maxParticipantLength = 50
)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// ExtractMeetingInfo reads the title and date shown on the page. Missing
// fields are left empty; DateFormatted falls back to now.
func ExtractMeetingInfo(doc *dom.Document, now time.Time) MeetingInfo {
	info := MeetingInfo{
		Title:    findTitle(doc),
		DateTime: findDateTime(doc),
		URL:      doc.URL(),
	}
	info.DateFormatted = FormatMeetingDate(info.DateTime, now)
	return info
}

func findTitle(doc *dom.Document) string {
	var title string
	doc.Find(titleSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		text := strings.TrimSpace(dom.InnerText(h))
		if dom.TextLength(text) > minTitleLength && !genericTitles[text] {
			title = text
			return false
		}
		return true
	})
	return title
}

func findDateTime(doc *dom.Document) string {
	var found string
	doc.TextNodes(func(text string) bool {
		for _, re := range []*regexp.Regexp{dateRangeRegex, bareDateRegex} {
			if m := re.FindString(text); m != "" {
				found = m
				return false
			}
		}
		return true
	})
	return found
}

// FormatMeetingDate renders the "Month D, YYYY" part of dateTime as YYYYMMDD.
// When no such date can be read it uses now.
func FormatMeetingDate(dateTime string, now time.Time) string {
	for _, m := range monthDayYearRegex.FindAllStringSubmatch(dateTime, -1) {
		month, ok := months[strings.ToLower(m[1])]
		if !ok {
			continue
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day < 1 || day > 31 {
			continue
		}
		return fmt.Sprintf("%04d%02d%02d", year, int(month), day)
	}
	return now.Format("20060102")
}

// TitleFallback asks readability for the article title of the page. It is
// used only when no heading qualified.
func TitleFallback(doc *dom.Document) (string, error) {
	html, err := doc.HTML()
	if err != nil {
		return "", fmt.Errorf("serializing snapshot: %w", err)
	}

	var pageURL *url.URL
	if doc.URL() != "" {
		if u, err := url.Parse(doc.URL()); err == nil {
			pageURL = u
		}
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", fmt.Errorf("reading article: %w", err)
	}
	title := strings.TrimSpace(article.Title)
	if genericTitles[title] {
		return "", nil
	}
	return title, nil
}

// ExtractParticipants lists the attendees shown in roster-like elements,
// deduplicated by name, in document order per selector.
func ExtractParticipants(doc *dom.Document) []Participant {
	participants := make([]Participant, 0)
	seen := make(map[string]bool)

	for _, selector := range participantSelectors {
		doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(dom.InnerText(item))
			if text == "" || participantSkipRegex.MatchString(text) {
				return
			}

			lines := dom.Lines(text)
			if len(lines) == 0 {
				return
			}
			name := lines[0]
			if n := dom.TextLength(name); n < minParticipantLength || n > maxParticipantLength {
				return
			}
			if seen[name] || !participantNameRegex.MatchString(name) {
				return
			}

			p := Participant{Name: name}
			lower := strings.ToLower(text)
			if strings.Contains(lower, "organizer") {
				p.Role = RoleOrganizer
			}
			if strings.Contains(lower, "you") {
				p.IsCurrentUser = true
			}
			if alt, ok := item.Find("img[alt]").First().Attr("alt"); ok {
				if status, ok := ParsePresenceStatus(alt); ok {
					p.Status = status
				}
			}

			seen[name] = true
			participants = append(participants, p)
		})
	}

	return participants
}
