package exporter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeFileName makes a sheet title usable as a file name on every common filesystem.
func SanitizeFileName(title string) string {
	var sb strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`<>:"/\|?*`, r):
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}

	name := strings.Trim(sb.String(), " .")
	if name == "" {
		name = "sheet"
	}

	return name
}

// FileNames sanitizes titles and resolves collisions in order: the first
// occurrence keeps the bare name, later ones get -2, -3, ... appended.
// Comparison is case-insensitive so that the result is safe on macOS and Windows too.
func FileNames(titles []string) []string {
	return uniqueNames(titles, SanitizeFileName, 0)
}

// uniqueNames applies sanitize to every title and disambiguates the results.
// A positive maxLen caps the length in runes, suffix included.
func uniqueNames(titles []string, sanitize func(string) string, maxLen int) []string {
	names := make([]string, len(titles))
	used := make(map[string]bool, len(titles))

	for i, title := range titles {
		base := sanitize(title)
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf("-%d", n)
			name = truncateRunes(base, maxLen-len(suffix)) + suffix
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}

	return names
}

// truncateRunes shortens s to at most n runes. A non-positive n leaves s unchanged.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}

	for utf8.RuneCountInString(s) > n {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}

	return s
}
