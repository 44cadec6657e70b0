package pathplan

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// FitPath caps a full path at maxLen runes by truncating the filename's
// base name. The extension is always preserved, and at least one character
// of the base name survives.
func FitPath(path string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(path) <= maxLen {
		return path
	}

	dir, name := filepath.Split(path)
	budget := maxLen - utf8.RuneCountInString(dir)

	return dir + FitFilename(name, budget)
}

// FitFilename caps a filename at maxLen runes, truncating the base name
// while preserving the extension and at least one base character. Lengths
// count runes, not bytes, so multibyte names are never split mid-character.
func FitFilename(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 1
	}
	if utf8.RuneCountInString(name) <= maxLen {
		return name
	}

	ext := filepath.Ext(name)
	base := []rune(strings.TrimSuffix(name, ext))

	keep := maxLen - utf8.RuneCountInString(ext)
	if keep < 1 {
		keep = 1
	}
	if keep > len(base) {
		keep = len(base)
	}

	return string(base[:keep]) + ext
}

// Variant derives the attempt-th alternative for a contested path. The
// suffix policy appends _1, _2, …; the timestamp policy appends a
// fixed-width time-of-day token first and numbered suffixes after that.
// The name generator shares this so filenames and paths collide-resolve
// identically.
func Variant(path string, policy Policy, attempt int, now time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	if policy == PolicyTimestamp {
		token := now.Format("150405")
		if attempt == 1 {
			return fmt.Sprintf("%s_%s%s", base, token, ext)
		}
		return fmt.Sprintf("%s_%s_%d%s", base, token, attempt-1, ext)
	}

	return fmt.Sprintf("%s_%d%s", base, attempt, ext)
}
