package transcript

import (
	"strconv"
	"strings"
)

// Seconds converts an "M:SS" or "H:MM:SS" timestamp into seconds.
//
// Any other shape yields 0, as does a part that is not a number, so entries
// with unrecognized timestamps sort first. An empty part counts as zero.
func Seconds(ts string) int {
	if ts == "" {
		return 0
	}

	parts := strings.Split(ts, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}

	total := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n := 0
		if p != "" {
			v, err := strconv.Atoi(p)
			if err != nil {
				return 0
			}
			n = v
		}
		total = total*60 + n
	}
	return total
}
