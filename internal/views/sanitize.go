package views

import (
	"strings"
	"unicode/utf8"
)

// maxNameBytes is the common per-component file name limit.
const maxNameBytes = 255

var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM0": true, "COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT0": true, "LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize makes name usable as a single path component on common
// filesystems. Illegal and control characters are dropped, names that are
// only dots or a Windows device name become empty, the result is cut to 255
// bytes without splitting a rune and trailing dots and spaces are trimmed.
func Sanitize(name string) string {
	return strings.TrimRight(truncate(clean(name), maxNameBytes), ". ")
}

// sanitizeWithSuffix sanitizes title and suffix separately and cuts only
// the title, so the suffix always survives. It returns "" when nothing of
// the title is left.
func sanitizeWithSuffix(title, suffix string) string {
	suffix = Sanitize(suffix)
	t := strings.TrimRight(truncate(clean(title), maxNameBytes-len(suffix)), ". ")
	if t == "" {
		return ""
	}
	return t + suffix
}

func clean(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case strings.ContainsRune(`/\?<>:*|"`, r):
		case r <= 0x1f, r >= 0x80 && r <= 0x9f:
		case r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()

	if strings.Trim(s, ".") == "" {
		return ""
	}
	base := s
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if windowsReserved[strings.ToUpper(base)] {
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
