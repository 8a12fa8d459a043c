package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/KaramelBytes/parish-explorer/internal/ai"
	cfgpkg "github.com/KaramelBytes/parish-explorer/internal/config"
	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/export"
	"github.com/KaramelBytes/parish-explorer/internal/recommend"
	"github.com/KaramelBytes/parish-explorer/internal/selection"
	"github.com/spf13/cobra"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// buildRuntime picks the recommendation provider. Recommendations are sent
// exactly once, so the runtime never retries.
func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	if cfg != nil && cfg.HTTPTimeoutSec > 0 {
		httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
	}

	name := strings.TrimSpace(opts.ProviderFlag)
	if name == "" && cfg != nil {
		name = cfg.DefaultProvider
	}
	if name == "" {
		name = ai.ProviderGemini
	}
	providerName, ok := ai.NormalizeProvider(name)
	if !ok {
		return nil, name, fmt.Errorf("provider not supported: %s (use %s)", name, strings.Join(ai.Providers(), "|"))
	}

	rc := ai.RuntimeConfig{HTTPTimeout: httpTimeout}
	switch providerName {
	case ai.ProviderGemini:
		rc.APIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.ProviderKey()
		}
	case ai.ProviderOpenRouter:
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
	case ai.ProviderOllama:
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		rc.Host = host
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s", providerName)
	}
	return client, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return ai.DefaultGeminiModel
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var (
	tableCacheOnce sync.Once
	tableCache     *dataset.Cache
	tableCacheErr  error
)

// loadTable reads the configured dataset through a process-wide LRU cache.
func loadTable(cfg *cfgpkg.Global, warn io.Writer) (*dataset.Table, error) {
	if cfg == nil || strings.TrimSpace(cfg.DataPath) == "" {
		return nil, fmt.Errorf("no dataset configured: pass --data <file> or run 'parishx config set data_path <file>'")
	}
	tableCacheOnce.Do(func() {
		tableCache, tableCacheErr = dataset.NewCache(cfg.CacheSize)
	})
	if tableCacheErr != nil {
		return nil, tableCacheErr
	}
	t, err := tableCache.Load(cfg.DataPath, cfg.Sheet)
	if err != nil {
		return nil, err
	}
	if debug && warn != nil {
		for _, w := range t.Warnings {
			fmt.Fprintf(warn, "⚠ %s: %s\n", t.Name, w)
		}
	}
	return t, nil
}

// openStore returns the configured session store and a release func.
func openStore(ctx context.Context, cfg *cfgpkg.Global) (selection.Store, func(), error) {
	noop := func() {}
	backend := "file"
	if cfg != nil && cfg.SessionBackend != "" {
		backend = cfg.SessionBackend
	}
	switch backend {
	case "memory":
		return selection.NewMemoryStore(), noop, nil
	case "file":
		dir := ""
		if cfg != nil {
			dir = cfg.SessionDir
		}
		if dir == "" {
			d, err := cfgpkg.Dir()
			if err != nil {
				return nil, noop, err
			}
			dir = filepath.Join(d, "sessions")
		}
		return selection.NewFileStore(dir), noop, nil
	case "postgres":
		if cfg == nil || cfg.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("session_backend=postgres requires database_url")
		}
		s, err := selection.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown session_backend: %s (use file, memory or postgres)", backend)
}

// buildSink returns the export destination; target overrides config.
func buildSink(cfg *cfgpkg.Global, target string) (export.Sink, error) {
	if target == "" && cfg != nil {
		target = cfg.ExportTarget
	}
	switch target {
	case "", "local":
		dir := ""
		if cfg != nil {
			dir = cfg.ExportDir
		}
		return export.LocalSink{Dir: dir}, nil
	case "s3":
		if cfg == nil {
			return nil, fmt.Errorf("s3 export requires configuration")
		}
		return export.NewS3Sink(export.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: firstNonEmpty(cfg.S3AccessKey, os.Getenv("AWS_ACCESS_KEY_ID")),
			SecretKey: firstNonEmpty(cfg.S3SecretKey, os.Getenv("AWS_SECRET_ACCESS_KEY")),
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return nil, fmt.Errorf("unknown export target: %s (use local or s3)", target)
}

// selectionFlags are shared by every command that resolves a selection.
type selectionFlags struct {
	metrics  []string
	parishes []string
	all      bool
	top5     bool
	top10    bool
	bottom5  bool
	bottom10 bool
	apply    bool
}

func (s *selectionFlags) bind(cmd *cobra.Command, withApply bool) {
	f := cmd.Flags()
	f.StringArrayVarP(&s.metrics, "metric", "m", nil, fmt.Sprintf("metric column (repeatable; %q selects every metric; default %q)", selection.AllMetrics, selection.DefaultMetric))
	f.StringArrayVar(&s.parishes, "parish", nil, "explicit parish (repeatable); used with --apply")
	f.BoolVar(&s.all, "all-parishes", false, "select every parish")
	f.BoolVar(&s.top5, "top5", false, "include the top 5 parishes by the first metric")
	f.BoolVar(&s.top10, "top10", true, "include the top 10 parishes by the first metric")
	f.BoolVar(&s.bottom5, "bottom5", true, "include the bottom 5 parishes by the first metric")
	f.BoolVar(&s.bottom10, "bottom10", false, "include the bottom 10 parishes by the first metric")
	if withApply {
		f.BoolVar(&s.apply, "apply", false, "commit --parish names (or the preset set) as the session selection")
	}
}

func (s *selectionFlags) flags() selection.Flags {
	return selection.Flags{SelectAll: s.all, Top5: s.top5, Top10: s.top10, Bottom5: s.bottom5, Bottom10: s.bottom10}
}

func (s *selectionFlags) input() selection.Input {
	return selection.Input{
		Metrics:  append([]string(nil), s.metrics...),
		Flags:    s.flags(),
		Explicit: append([]string(nil), s.parishes...),
		Apply:    s.apply,
	}
}

// exploreSession loads the dataset and session store and resolves sel.
func exploreSession(cmd *cobra.Command, sel *selectionFlags) (*selection.Resolution, *selection.View, error) {
	t, err := loadTable(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	store, release, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	return selection.Explore(cmd.Context(), t, store, sessionID, sel.input())
}

// printRows writes a tab-aligned table of at most limit rows (0 means all).
func printRows(w io.Writer, t *dataset.Table, limit int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns(), "\t"))
	for i, r := range t.Rows() {
		if limit > 0 && i >= limit {
			fmt.Fprintf(tw, "… %d more\n", t.Len()-limit)
			break
		}
		cells := make([]string, 0, len(r.Values)+1)
		cells = append(cells, r.Parish)
		for _, v := range r.Values {
			cells = append(cells, dataset.FormatValue(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func printCorrelation(w io.Writer, m *dataset.CorrMatrix) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\t"+strings.Join(m.Columns, "\t")+"\t")
	for i, c := range m.Columns {
		cells := make([]string, len(m.Values[i]))
		for j, v := range m.Values[i] {
			cells[j] = fmt.Sprintf("%.2f", v)
		}
		fmt.Fprintln(tw, c+"\t"+strings.Join(cells, "\t")+"\t")
	}
	_ = tw.Flush()
}

type outputOptions struct {
	JSON       bool
	Quiet      bool
	Model      string
	Provider   string
	OutputPath string
	Writer     io.Writer
}

// formatAndWriteOutput prints a recommendation response as markdown or JSON
// and optionally saves the same rendering to OutputPath.
func formatAndWriteOutput(resp *recommend.Response, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	var body []byte
	if opts.JSON {
		out := map[string]any{
			"provider":   opts.Provider,
			"model":      opts.Model,
			"kind":       resp.Kind,
			"failed":     resp.Result.Failed(),
			"request_id": resp.RequestID,
			"disclaimer": recommend.Disclaimer,
		}
		switch r := resp.Result.(type) {
		case recommend.ParsedRecords:
			out["recommendations"] = r.Records
		case recommend.RawTextFallback:
			out["raw"] = r.Raw
			if r.Err != nil {
				out["error"] = r.Err.Error()
			}
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		body = append(b, '\n')
	} else {
		switch r := resp.Result.(type) {
		case recommend.ParsedRecords:
			body = []byte(recommend.Markdown(r.Records))
		case recommend.RawTextFallback:
			body = []byte(recommend.FallbackMarkdown(r))
		}
		if !opts.Quiet {
			fmt.Fprintln(w, "\n=== Business Recommendations ===")
		}
	}
	if _, err := w.Write(body); err != nil {
		return err
	}

	if opts.OutputPath == "" {
		return nil
	}
	if err := os.WriteFile(opts.OutputPath, body, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}
