package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/parish-explorer/internal/ai"
)

func TestBuildPromptVariants(t *testing.T) {
	parishes := []string{"Acadia", "Caddo"}

	p, err := BuildPrompt([]string{"GDP (2023)"}, parishes, true)
	require.NoError(t, err)
	assert.Contains(t, p, "for the selected parishes ['Acadia', 'Caddo']")
	assert.Contains(t, p, "bottom-performing parishes based on the metric 'GDP (2023)'")
	assert.Contains(t, p, "Avoid construction projects in Parish X")

	p, err = BuildPrompt([]string{"GDP (2023)"}, parishes, false)
	require.NoError(t, err)
	assert.NotContains(t, p, "bottom-performing")
	assert.Contains(t, p, "Please provide 2-3 business recommendations based on this data.")
	assert.Contains(t, p, "Parish X shows the highest GDP (2023) value")

	p, err = BuildPrompt([]string{"GDP (2023)", "Population (2023)"}, parishes, true)
	require.NoError(t, err)
	assert.Equal(t, Persona+" and I would like to get insights based on the relationship between 'GDP (2023)' and 'Population (2023)' for the selected parishes ['Acadia', 'Caddo']."+objectInstruction, p)

	p, err = BuildPrompt([]string{"A", "B", "C"}, parishes, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, Persona+" and I would like to get information on the correlation between metrics"))

	_, err = BuildPrompt(nil, parishes, false)
	assert.Error(t, err)
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, PromptUnderperforming, KindFor(1, true))
	assert.Equal(t, PromptGeneral, KindFor(1, false))
	assert.Equal(t, PromptRelationship, KindFor(2, true))
	assert.Equal(t, PromptCorrelation, KindFor(5, true))
}

func TestFormatParishList(t *testing.T) {
	assert.Equal(t, "[]", FormatParishList(nil))
	assert.Equal(t, `['St. Mary', 'O\'Neil']`, FormatParishList([]string{"St. Mary", "O'Neil"}))
}

func TestParseFencedArray(t *testing.T) {
	reply := "Here you go:\n```json\n[{\"recommendation\":\"Build\",\"reason\":\"Growth\",\"source\":\"Census\",\"source_url\":\"https://census.gov\"},{\"recommendation\":\"Wait\"}]\n```\nThanks"
	res := Parse(reply)
	require.False(t, res.Failed())
	recs := res.(ParsedRecords).Records
	require.Len(t, recs, 2)
	assert.Equal(t, "Build", recs[0].Recommendation)
	url, ok := recs[0].Link()
	assert.True(t, ok)
	assert.Equal(t, "https://census.gov", url)

	assert.Equal(t, NoReason, recs[1].Reason)
	assert.Equal(t, NoSource, recs[1].Source)
	_, ok = recs[1].Link()
	assert.False(t, ok)
}

func TestParseSingleObjectIsWrapped(t *testing.T) {
	res := Parse(`{"recommendation":"One","reason":"r","source":"s","source_url":"ftp://x"}`)
	require.False(t, res.Failed())
	recs := res.(ParsedRecords).Records
	require.Len(t, recs, 1)
	_, ok := recs[0].Link()
	assert.False(t, ok, "non-http url is not a link")
}

func TestParseFallback(t *testing.T) {
	for _, in := range []string{"not json at all", "", "42", `["a","b"]`} {
		res := Parse(in)
		require.True(t, res.Failed(), in)
		fb := res.(RawTextFallback)
		assert.Equal(t, in, fb.Raw)
		assert.ErrorIs(t, fb.Err, ErrFormat)
	}
}

func TestParseNonStringFields(t *testing.T) {
	res := Parse(`[{"recommendation":null,"reason":3,"source":["a"]}]`)
	require.False(t, res.Failed())
	rec := res.(ParsedRecords).Records[0]
	assert.Equal(t, NoRecommendation, rec.Recommendation)
	assert.Equal(t, "3", rec.Reason)
	assert.Equal(t, `["a"]`, rec.Source)
}

func TestStripFenceIdempotent(t *testing.T) {
	cases := []string{
		"```json\n[{\"a\":1}]\n```",
		"```\n{\"a\":1}\n```",
		"  [1, 2]  ",
		"prefix ```json {\"x\":2}``` suffix",
	}
	for _, c := range cases {
		once := StripFence(c)
		assert.Equal(t, once, StripFence(once), c)
	}
	assert.Equal(t, `{"a":1}`, StripFence("```\n{\"a\":1}\n```"))
}

func TestMarkdownIncludesDisclaimer(t *testing.T) {
	md := Markdown([]Record{{Recommendation: "Build", Reason: "r", Source: "Census", SourceURL: "https://c.gov"}})
	assert.Contains(t, md, "**Recommendation 1:** Build")
	assert.Contains(t, md, "[Census](https://c.gov)")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(md), Disclaimer))

	fb := FallbackMarkdown(RawTextFallback{Raw: "plain text", Err: ErrFormat})
	assert.Contains(t, fb, "### Raw Insights")
	assert.Contains(t, fb, "plain text")
}

type stubRuntime struct {
	calls int
	last  ai.GenerateRequest
	reply string
	err   error
}

func (s *stubRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{
		Choices:   []ai.Choice{{Message: ai.Message{Role: "assistant", Content: s.reply}}},
		RequestID: "req-1",
	}, nil
}

func TestServiceRecommendSingleCall(t *testing.T) {
	rt := &stubRuntime{reply: "```json\n[{\"recommendation\":\"Build\",\"reason\":\"r\",\"source\":\"s\"}]\n```"}
	svc := NewService(rt, "gemini-2.0-flash", WithMaxTokens(512))

	resp, err := svc.Recommend(context.Background(), Request{Metrics: []string{"GDP (2023)"}, Parishes: []string{"Acadia"}})
	require.NoError(t, err)
	assert.Equal(t, 1, rt.calls)
	assert.Equal(t, "gemini-2.0-flash", rt.last.Model)
	assert.Equal(t, 512, rt.last.MaxTokens)
	require.Len(t, rt.last.Messages, 1)
	assert.Equal(t, resp.Prompt, rt.last.Messages[0].Content)
	assert.Equal(t, PromptGeneral, resp.Kind)
	assert.Equal(t, "req-1", resp.RequestID)
	require.False(t, resp.Result.Failed())
	assert.Equal(t, "Build", resp.Result.(ParsedRecords).Records[0].Recommendation)
}

func TestServiceMalformedReplyIsNotAnError(t *testing.T) {
	rt := &stubRuntime{reply: "Sorry, I cannot help with that."}
	resp, err := NewService(rt, "m").Recommend(context.Background(), Request{Metrics: []string{"A", "B"}})
	require.NoError(t, err)
	assert.True(t, resp.Result.Failed())
	assert.Equal(t, 1, rt.calls)
}

func TestServiceRemoteUnavailable(t *testing.T) {
	inner := &ai.ServerError{APIError: &ai.APIError{StatusCode: 503, Message: "overloaded"}}
	rt := &stubRuntime{err: inner}
	_, err := NewService(rt, "m").Recommend(context.Background(), Request{Metrics: []string{"A"}})
	require.Error(t, err)
	assert.Equal(t, 1, rt.calls, "no retries")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	var se *ai.ServerError
	assert.ErrorAs(t, err, &se)
	var ru *RemoteUnavailableError
	require.ErrorAs(t, err, &ru)
	assert.Same(t, inner, ru.Err)
}

func TestServiceRejectsEmptyMetrics(t *testing.T) {
	rt := &stubRuntime{}
	_, err := NewService(rt, "m").Recommend(context.Background(), Request{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRemoteUnavailable)
	assert.Zero(t, rt.calls)
	assert.False(t, errors.Is(err, ErrFormat))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("GDP"))
	p, err := BuildPrompt([]string{"GDP (2023)"}, []string{"Acadia", "Caddo"}, false)
	require.NoError(t, err)
	assert.Equal(t, len([]rune(p))/4, EstimateTokens(p))
}
