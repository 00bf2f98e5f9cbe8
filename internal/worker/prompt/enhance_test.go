// File: internal/worker/prompt/enhance_test.go
package prompt

import (
	"strings"
	"testing"
)

func TestEnhanceNoDegradationReturnsSubtleOnly(t *testing.T) {
	got := Enhance(map[string]float64{"blur": 0.1, "noise": 0.2}, "")
	if got != subtleOnlyMessage {
		t.Errorf("got %q, want the subtle-only fallback", got)
	}
}

func TestEnhanceIncludesUserPromptVerbatim(t *testing.T) {
	got := Enhance(map[string]float64{}, "make grandma smile")
	if !strings.Contains(got, "make grandma smile") {
		t.Errorf("expected user prompt echoed back, got %q", got)
	}
}

func TestEnhanceSelectsDominantKindsInOrder(t *testing.T) {
	classification := map[string]float64{
		"blur":  0.9,
		"noise": 0.5,
		"fade":  0.35,
	}
	got := Enhance(classification, "")

	blurIdx := strings.Index(got, "deblur")
	noiseIdx := strings.Index(got, "denoise")
	fadeIdx := strings.Index(got, "restore slightly faded")

	if blurIdx < 0 || noiseIdx < 0 || fadeIdx < 0 {
		t.Fatalf("expected fragments for all three kinds, got %q", got)
	}
	if !(blurIdx < noiseIdx && noiseIdx < fadeIdx) {
		t.Errorf("expected fragments ordered by descending score: blur, noise, fade; got %q", got)
	}
}

func TestEnhanceCapsAtThreeSelections(t *testing.T) {
	classification := map[string]float64{
		"blur":        0.9,
		"noise":       0.8,
		"low-light":   0.7,
		"compression": 0.6,
		"scratch":     0.5,
	}
	got := Enhance(classification, "")

	count := 0
	for _, frag := range []string{"deblur", "denoise", "brighten underexposed", "blocking", "scratches"} {
		if strings.Contains(got, frag) {
			count++
		}
	}
	if count > maxSelected {
		t.Errorf("expected at most %d fragments, matched %d in %q", maxSelected, count, got)
	}
}

func TestEnhanceIgnoresScoresAtOrBelowThreshold(t *testing.T) {
	got := Enhance(map[string]float64{"blur": selectThreshold}, "")
	if got != subtleOnlyMessage {
		t.Errorf("a score exactly at the threshold must not be selected, got %q", got)
	}
}

func TestEnhanceAddsHighSeverityHintOnlyWhenWarranted(t *testing.T) {
	high := Enhance(map[string]float64{"blur": 0.95}, "")
	if !strings.Contains(high, highSeverityHint) {
		t.Errorf("expected high-severity hint for a 0.95 score, got %q", high)
	}

	medium := Enhance(map[string]float64{"blur": 0.55}, "")
	if strings.Contains(medium, highSeverityHint) {
		t.Errorf("did not expect high-severity hint for a medium score, got %q", medium)
	}
}

func TestSeverityBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.0, "low"},
		{0.49, "low"},
		{0.5, "medium"},
		{0.69, "medium"},
		{0.7, "high"},
		{1.0, "high"},
	}
	for _, c := range cases {
		if got := severity(c.score); got != c.want {
			t.Errorf("severity(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestClampLengthTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("a", hardLimit+50)
	got := clampLength(long)
	if len(got) != truncateAt+3 {
		t.Errorf("clamped length = %d, want %d", len(got), truncateAt+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated output to end with an ellipsis")
	}
}

func TestClampLengthLeavesShortOutputAlone(t *testing.T) {
	short := "a short instruction"
	if got := clampLength(short); got != short {
		t.Errorf("clampLength should not modify strings under the limit, got %q", got)
	}
}
