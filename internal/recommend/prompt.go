package recommend

import (
	"fmt"
	"strings"
)

// Persona opens every prompt.
const Persona = "I am working for a construction company in Louisiana"

// PromptKind names the prompt variant chosen for a selection.
type PromptKind string

const (
	PromptUnderperforming PromptKind = "underperforming"
	PromptGeneral         PromptKind = "general"
	PromptRelationship    PromptKind = "relationship"
	PromptCorrelation     PromptKind = "correlation"
)

const objectInstruction = " Provide the response as a JSON with a 'recommendation', 'reason', and 'source'."

// KindFor selects the prompt variant from the metric count and bottom presets.
func KindFor(metricCount int, anyBottom bool) PromptKind {
	switch {
	case metricCount <= 1 && anyBottom:
		return PromptUnderperforming
	case metricCount <= 1:
		return PromptGeneral
	case metricCount == 2:
		return PromptRelationship
	default:
		return PromptCorrelation
	}
}

// BuildPrompt renders the recommendation request. It is a pure function of the
// selected metrics, the resolved parish names and whether a bottom preset is on.
func BuildPrompt(metrics, parishes []string, anyBottom bool) (string, error) {
	if len(metrics) == 0 {
		return "", fmt.Errorf("build prompt: no metrics selected")
	}
	list := FormatParishList(parishes)
	switch KindFor(len(metrics), anyBottom) {
	case PromptUnderperforming:
		return singleMetricPrompt(metrics[0], list, true), nil
	case PromptGeneral:
		return singleMetricPrompt(metrics[0], list, false), nil
	case PromptRelationship:
		return fmt.Sprintf("%s and I would like to get insights based on the relationship between '%s' and '%s' for the selected parishes %s.",
			Persona, metrics[0], metrics[1], list) + objectInstruction, nil
	default:
		return fmt.Sprintf("%s and I would like to get information on the correlation between metrics for the selected parishes %s.",
			Persona, list) + objectInstruction, nil
	}
}

func singleMetricPrompt(metric, list string, underperforming bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s and I would like to get information based on the selected metric '%s' for the selected parishes %s.\n\n", Persona, metric, list)
	if underperforming {
		fmt.Fprintf(&b, "The selected parishes include the bottom-performing parishes based on the metric '%s', which may indicate challenges or risks for construction projects in these areas.\n\n", metric)
		b.WriteString("Please provide 2-3 business recommendations highlighting why these areas may not be ideal for construction work and suggest alternative strategies or locations.\n\n")
	} else {
		b.WriteString("Please provide 2-3 business recommendations based on this data.\n\n")
	}
	b.WriteString("Format your response STRICTLY as a JSON array with objects containing 'recommendation', 'reason', 'source', and 'source_url' fields.\n")
	b.WriteString("Example format:\n")
	if underperforming {
		b.WriteString(exampleBlock(
			exampleEntry{"Avoid construction projects in Parish X", fmt.Sprintf("Parish X shows the lowest %s value, indicating limited economic potential", metric), "Analysis of provided Louisiana parish data", "https://example.com/louisiana-economic-data"},
			exampleEntry{"Focus on alternative locations", "Parish Y has better economic indicators compared to the selected parishes", "Internal analysis report", "https://example.com/alternative-locations"},
		))
	} else {
		b.WriteString(exampleBlock(
			exampleEntry{"Focus construction efforts in Parish X", fmt.Sprintf("Parish X shows the highest %s value, indicating strong economic potential", metric), "Analysis of provided Louisiana parish data", "https://example.com/louisiana-economic-data"},
			exampleEntry{"Another recommendation here", "Reasoning here", "Source here", "https://example.com/another-source"},
		))
	}
	return b.String()
}

type exampleEntry struct{ rec, reason, source, url string }

func exampleBlock(entries ...exampleEntry) string {
	var b strings.Builder
	b.WriteString("[\n")
	for i, e := range entries {
		b.WriteString("  {\n")
		fmt.Fprintf(&b, "    \"recommendation\": %q,\n", e.rec)
		fmt.Fprintf(&b, "    \"reason\": %q,\n", e.reason)
		fmt.Fprintf(&b, "    \"source\": %q,\n", e.source)
		fmt.Fprintf(&b, "    \"source_url\": %q\n", e.url)
		if i < len(entries)-1 {
			b.WriteString("  },\n")
		} else {
			b.WriteString("  }\n")
		}
	}
	b.WriteString("]\n")
	return b.String()
}

// FormatParishList renders names as a bracketed, single-quoted list such as
// ['Acadia', 'Caddo'].
func FormatParishList(parishes []string) string {
	quoted := make([]string, len(parishes))
	for i, p := range parishes {
		quoted[i] = "'" + strings.ReplaceAll(p, "'", `\'`) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// EstimateTokens is the rough prompt size shown by dry runs: about four
// characters per token, and at least one for any non-empty prompt.
func EstimateTokens(prompt string) int {
	n := len([]rune(prompt))
	if n == 0 {
		return 0
	}
	return max(n/4, 1)
}
