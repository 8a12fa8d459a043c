package recommend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	NoRecommendation = "No recommendation provided"
	NoReason         = "No reason provided"
	NoSource         = "No source provided"

	// Disclaimer accompanies every rendered set of recommendations.
	Disclaimer = "Note: The recommendations above were generated using AI and may not be completely accurate. Please verify any critical information before making business decisions."
)

// ErrFormat describes a reply that could not be parsed into records.
var ErrFormat = errors.New("failed to parse the response as JSON")

// Record is one parsed recommendation.
type Record struct {
	Recommendation string `json:"recommendation"`
	Reason         string `json:"reason"`
	Source         string `json:"source"`
	SourceURL      string `json:"source_url,omitempty"`
}

// Link returns the source URL when it is usable as a hyperlink.
func (r Record) Link() (string, bool) {
	if r.SourceURL != "" && strings.HasPrefix(r.SourceURL, "http") {
		return r.SourceURL, true
	}
	return "", false
}

// Result is either ParsedRecords or RawTextFallback.
type Result interface {
	Failed() bool
}

// ParsedRecords is a successfully parsed reply.
type ParsedRecords struct {
	Records []Record
}

func (ParsedRecords) Failed() bool { return false }

// RawTextFallback carries the unparsed reply and the reason parsing failed.
type RawTextFallback struct {
	Raw string
	Err error
}

func (RawTextFallback) Failed() bool { return true }

// Parse turns a service reply into records. It never returns an error: a reply
// that is not a JSON object or array of objects yields RawTextFallback.
func Parse(text string) Result {
	payload := StripFence(text)
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return RawTextFallback{Raw: text, Err: fmt.Errorf("%w: %v", ErrFormat, err)}
	}
	var items []any
	switch t := v.(type) {
	case map[string]any:
		items = []any{t}
	case []any:
		items = t
	default:
		return RawTextFallback{Raw: text, Err: fmt.Errorf("%w: top-level value is %T", ErrFormat, v)}
	}
	records := make([]Record, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return RawTextFallback{Raw: text, Err: fmt.Errorf("%w: entry %d is not an object", ErrFormat, i+1)}
		}
		records = append(records, Record{
			Recommendation: field(obj, "recommendation", NoRecommendation),
			Reason:         field(obj, "reason", NoReason),
			Source:         field(obj, "source", NoSource),
			SourceURL:      field(obj, "source_url", ""),
		})
	}
	return ParsedRecords{Records: records}
}

// StripFence returns the payload between a ```json marker and the next
// closing fence. A reply wrapped in a bare ``` fence is unwrapped as well.
// Anything else is returned trimmed.
func StripFence(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		body := strings.TrimPrefix(trimmed, "```")
		// drop an optional language tag on the opening line
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "[{") {
			body = body[nl+1:]
		}
		body, _, _ = strings.Cut(body, "```")
		return strings.TrimSpace(body)
	}
	return trimmed
}

func field(obj map[string]any, key, def string) string {
	v, ok := obj[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return def
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Markdown renders records the way the dashboard lists them, followed by the
// disclaimer.
func Markdown(records []Record) string {
	var b strings.Builder
	b.WriteString("### Recommendations\n\n")
	for i, r := range records {
		fmt.Fprintf(&b, "**Recommendation %d:** %s\n", i+1, r.Recommendation)
		fmt.Fprintf(&b, "- **Reason:** %s\n", r.Reason)
		if url, ok := r.Link(); ok {
			fmt.Fprintf(&b, "- **Source:** [%s](%s)\n", r.Source, url)
		} else {
			fmt.Fprintf(&b, "- **Source:** %s\n", r.Source)
		}
		b.WriteString("\n---\n\n")
	}
	b.WriteString(Disclaimer)
	b.WriteString("\n")
	return b.String()
}

// FallbackMarkdown renders a failed parse with the raw reply.
func FallbackMarkdown(fb RawTextFallback) string {
	var b strings.Builder
	b.WriteString("Failed to parse the response as JSON.\n\n")
	if fb.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n\n", fb.Err)
	}
	b.WriteString("### Raw Insights\n\n")
	b.WriteString(strings.TrimSpace(fb.Raw))
	b.WriteString("\n\n")
	b.WriteString(Disclaimer)
	b.WriteString("\n")
	return b.String()
}
