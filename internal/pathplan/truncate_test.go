package pathplan

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFitFilename(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "under limit unchanged", in: "report.pdf", maxLen: 50, want: "report.pdf"},
		{name: "base truncated extension kept", in: "aaaaaaaaaa.pdf", maxLen: 8, want: "aaaa.pdf"},
		{name: "at least one base char", in: "abcdef.verylongext", maxLen: 5, want: "a.verylongext"},
		{name: "no extension", in: strings.Repeat("x", 20), maxLen: 10, want: strings.Repeat("x", 10)},
		{name: "non-positive limit keeps one base char", in: "abc.pdf", maxLen: 0, want: "a.pdf"},
		{name: "multibyte base truncated on rune boundary", in: strings.Repeat("合", 10) + ".pdf", maxLen: 8, want: strings.Repeat("合", 4) + ".pdf"},
		{name: "multibyte under rune limit unchanged", in: "资产负债表.pdf", maxLen: 9, want: "资产负债表.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FitFilename(tt.in, tt.maxLen))
		})
	}
}

func TestFitPathTruncatesOnlyFilename(t *testing.T) {
	path := "/very/long/directory/structure/" + strings.Repeat("n", 100) + ".pdf"
	got := FitPath(path, 60)

	assert.LessOrEqual(t, len(got), 60)
	assert.True(t, strings.HasPrefix(got, "/very/long/directory/structure/"))
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestFitFilenameNeverSplitsRunes(t *testing.T) {
	name := strings.Repeat("资产负债表", 5) + ".pdf"

	for maxLen := 5; maxLen < 30; maxLen++ {
		got := FitFilename(name, maxLen)
		assert.True(t, utf8.ValidString(got), "maxLen %d produced invalid UTF-8: %q", maxLen, got)
		assert.True(t, strings.HasSuffix(got, ".pdf"))
	}
}

func TestVariantSuffixPolicy(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "/a/b_1.pdf", Variant("/a/b.pdf", PolicySuffix, 1, now))
	assert.Equal(t, "/a/b_7.pdf", Variant("/a/b.pdf", PolicySuffix, 7, now))
	assert.Equal(t, "/a/noext_2", Variant("/a/noext", PolicySuffix, 2, now))
}

func TestVariantTimestampPolicy(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "/a/b_030405.pdf", Variant("/a/b.pdf", PolicyTimestamp, 1, now))
	assert.Equal(t, "/a/b_030405_1.pdf", Variant("/a/b.pdf", PolicyTimestamp, 2, now))
	assert.Equal(t, "/a/b_030405_2.pdf", Variant("/a/b.pdf", PolicyTimestamp, 3, now))
}
