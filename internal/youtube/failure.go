package youtube

import "strings"

// unavailablePhrases are checked in order against downloader stderr.
var unavailablePhrases = []string{
	"unavailable",
	"not available",
	"members on level",
	"has been removed for violating",
	"Private video",
}

// ClassifyFailure decides whether a failed download is permanent. A phrase
// counts only when it matches exactly one stderr line; the first such phrase
// wins. The reason is the text after the first colon at or beyond column 7
// of that line (yt-dlp prefixes lines with "ERROR: [youtube] <id>:").
//
// ok is false when no phrase identifies the failure unambiguously, in which
// case the failure is transient and the video stays eligible.
func ClassifyFailure(stderr string) (reason string, ok bool) {
	lines := strings.Split(strings.ReplaceAll(stderr, "\r\n", "\n"), "\n")

	for _, phrase := range unavailablePhrases {
		var match string
		n := 0
		for _, line := range lines {
			if strings.Contains(line, phrase) {
				match = line
				n++
			}
		}
		if n != 1 {
			continue
		}
		return extractReason(match), true
	}
	return "", false
}

func extractReason(line string) string {
	if len(line) > 7 {
		if i := strings.IndexByte(line[7:], ':'); i >= 0 {
			return strings.TrimSpace(line[7+i+1:])
		}
	}
	return strings.TrimSpace(line)
}
