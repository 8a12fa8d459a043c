package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KaramelBytes/parish-explorer/internal/ai"
	"github.com/KaramelBytes/parish-explorer/internal/chart"
	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/export"
	"github.com/KaramelBytes/parish-explorer/internal/recommend"
	"github.com/KaramelBytes/parish-explorer/internal/selection"
)

type rowJSON struct {
	Parish string    `json:"parish"`
	Values []float64 `json:"values"`
}

type viewResponse struct {
	Session     string              `json:"session"`
	Kind        selection.ChartKind `json:"kind"`
	Title       string              `json:"title"`
	Metrics     []string            `json:"metrics"`
	Parishes    []string            `json:"parishes"`
	Source      selection.Source    `json:"source"`
	Rows        []rowJSON           `json:"rows"`
	Correlation *dataset.CorrMatrix `json:"correlation,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

func rowsJSON(t *dataset.Table) []rowJSON {
	out := make([]rowJSON, 0, t.Len())
	for _, r := range t.Rows() {
		out = append(out, rowJSON{Parish: r.Parish, Values: r.Values})
	}
	return out
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	t, err := s.tables(r.Context())
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics":  t.Metrics(),
		"parishes": t.Parishes(),
		"default":  selection.DefaultMetric,
	})
}

// explore decodes the selection, resolves it for the session and returns the
// result. It writes the error response itself and reports ok=false on failure.
func (s *Server) explore(w http.ResponseWriter, r *http.Request, force func(*selection.Input)) (selection.Input, *selection.Resolution, *selection.View, bool) {
	in, err := decodeInput(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err)
		return in, nil, nil, false
	}
	if force != nil {
		force(&in)
	}
	t, err := s.tables(r.Context())
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err)
		return in, nil, nil, false
	}
	res, v, err := selection.Explore(r.Context(), t, s.store, sessionID(r.Context()), in)
	if err != nil {
		writeError(s.logger, w, statusFor(err), err)
		return in, nil, nil, false
	}
	return in, res, v, true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	_, res, v, ok := s.explore(w, r, nil)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{
		Session:     sessionID(r.Context()),
		Kind:        v.Directive.Kind,
		Title:       v.Directive.Title,
		Metrics:     v.Directive.Metrics,
		Parishes:    res.Parishes,
		Source:      res.Source,
		Rows:        rowsJSON(v.Rows),
		Correlation: v.Corr,
		Warnings:    v.Warnings,
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	_, res, _, ok := s.explore(w, r, func(in *selection.Input) { in.Apply = true })
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sessionID(r.Context()),
		"parishes": res.Commit,
		"source":   res.Source,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := selection.Clear(r.Context(), s.store, sessionID(r.Context())); err != nil {
		writeError(s.logger, w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recommendResponse struct {
	Session   string               `json:"session"`
	Kind      recommend.PromptKind `json:"kind"`
	Failed    bool                 `json:"failed"`
	Records   []recommend.Record   `json:"records,omitempty"`
	Raw       string               `json:"raw,omitempty"`
	Error     string               `json:"error,omitempty"`
	Markdown  string               `json:"markdown"`
	RequestID string               `json:"request_id,omitempty"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if s.recommender == nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, errors.New("recommendations are not configured"))
		return
	}
	in, res, _, ok := s.explore(w, r, nil)
	if !ok {
		return
	}
	resp, err := s.recommender.Recommend(r.Context(), recommend.Request{
		Metrics:   res.Metrics,
		Parishes:  res.Parishes,
		AnyBottom: in.Flags.AnyBottom(),
	})
	if errors.Is(err, recommend.ErrRemoteUnavailable) {
		s.logger.Error("recommend: upstream failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "remote_unavailable", Message: err.Error(), Cause: string(ai.CauseOf(err))})
		return
	}
	if err != nil {
		writeError(s.logger, w, statusFor(err), err)
		return
	}
	out := recommendResponse{
		Session:   sessionID(r.Context()),
		Kind:      resp.Kind,
		Failed:    resp.Result.Failed(),
		RequestID: resp.RequestID,
	}
	switch result := resp.Result.(type) {
	case recommend.ParsedRecords:
		out.Records = result.Records
		out.Markdown = recommend.Markdown(result.Records)
	case recommend.RawTextFallback:
		out.Raw = result.Raw
		if result.Err != nil {
			out.Error = result.Err.Error()
		}
		out.Markdown = recommend.FallbackMarkdown(result)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	format, err := chart.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err)
		return
	}
	_, _, v, ok := s.explore(w, r, nil)
	if !ok {
		return
	}
	if v.Empty() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    selection.NoDataWarning,
			"warnings": v.Warnings,
		})
		return
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf, v, format); err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", chart.ContentType(format))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatCSV
	}
	_, res, _, ok := s.explore(w, r, nil)
	if !ok {
		return
	}
	data, ct, err := export.Encode(res.Rows, format)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err)
		return
	}
	name := dataset.DefaultExportName
	if format == export.FormatXLSX {
		name = strings.TrimSuffix(name, ".csv") + ".xlsx"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	_, res, v, ok := s.explore(w, r, nil)
	if !ok {
		return
	}
	sums, err := dataset.Describe(res.Rows, res.Metrics...)
	if err != nil {
		writeError(s.logger, w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sessionID(r.Context()),
		"summary":  sums,
		"warnings": v.Warnings,
	})
}
