// File: internal/worker/prompt/enhance.go
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

const (
	selectThreshold = 0.3
	maxSelected     = 3
	hardLimit       = 1000
	truncateAt      = 950
)

var order = []string{"blur", "noise", "low-light", "compression", "scratch", "fade", "color-shift"}

// severity buckets a score into low (<0.5), medium (<0.7), high (>=0.7).
func severity(score float64) string {
	switch {
	case score >= 0.7:
		return "high"
	case score >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// fragments maps kind -> severity -> instruction fragment. Grounded in the
// classifier's own vocabulary; wording favors concrete restoration verbs
// over vague adjectives so the provider receives an actionable directive.
var fragments = map[string]map[string]string{
	"blur": {
		"low":    "sharpen slightly softened detail",
		"medium": "recover edge detail lost to blur",
		"high":   "aggressively deblur and reconstruct fine detail",
	},
	"noise": {
		"low":    "smooth minor sensor noise",
		"medium": "denoise while preserving texture",
		"high":   "remove heavy noise and grain without flattening detail",
	},
	"low-light": {
		"low":    "lift shadows slightly",
		"medium": "brighten underexposed regions and recover shadow detail",
		"high":   "substantially brighten a severely underexposed image",
	},
	"compression": {
		"low":    "smooth light compression artifacts",
		"medium": "remove blocking and ringing artifacts",
		"high":   "reconstruct detail lost to heavy compression",
	},
	"scratch": {
		"low":    "clean a few surface scratches",
		"medium": "remove visible scratches and dust",
		"high":   "repair extensive scratches and physical damage",
	},
	"fade": {
		"low":    "restore slightly faded color",
		"medium": "revive faded color and contrast",
		"high":   "fully restore severely faded, low-contrast color",
	},
	"color-shift": {
		"low":    "correct a mild color cast",
		"medium": "correct a noticeable color cast",
		"high":   "correct a strong color cast and rebalance white point",
	},
}

const qualityGuidance = "Preserve the subject's identity and natural detail; avoid over-smoothing or introducing artifacts."
const highSeverityHint = "Prioritize the most severe damage first, then refine overall quality."
const subtleOnlyMessage = "Apply a subtle enhancement only: correct minor imperfections while keeping the image close to its original appearance."

type selection struct {
	kind  string
	score float64
}

// Enhance implements the restoration-instruction composer: select the
// dominant degradation kinds, pick severity-tiered fragments, and assemble
// a bounded-length instruction for the generative provider.
func Enhance(classification map[string]float64, userPrompt string) string {
	selections := selectKinds(classification)

	var b strings.Builder

	trimmed := strings.TrimSpace(userPrompt)
	if trimmed != "" {
		fmt.Fprintf(&b, "User request: %s. ", trimmed)
	}

	if len(selections) == 0 {
		if trimmed == "" {
			return subtleOnlyMessage
		}
		b.WriteString(subtleOnlyMessage)
		return clampLength(b.String())
	}

	fragmentList := make([]string, 0, len(selections))
	hasHigh := false
	for _, s := range selections {
		sev := severity(s.score)
		if sev == "high" {
			hasHigh = true
		}
		if frag, ok := fragments[s.kind][sev]; ok {
			fragmentList = append(fragmentList, frag)
		}
	}

	fmt.Fprintf(&b, "Technical restoration: %s. ", strings.Join(fragmentList, "; "))
	b.WriteString(qualityGuidance)
	if hasHigh {
		b.WriteString(" ")
		b.WriteString(highSeverityHint)
	}

	return clampLength(b.String())
}

func selectKinds(classification map[string]float64) []selection {
	selections := make([]selection, 0, len(classification))
	for _, kind := range order {
		score, ok := classification[kind]
		if !ok || score <= selectThreshold {
			continue
		}
		selections = append(selections, selection{kind: kind, score: score})
	}
	sort.SliceStable(selections, func(i, j int) bool { return selections[i].score > selections[j].score })
	if len(selections) > maxSelected {
		selections = selections[:maxSelected]
	}
	return selections
}

func clampLength(s string) string {
	if len(s) <= hardLimit {
		return s
	}
	return s[:truncateAt] + "..."
}
