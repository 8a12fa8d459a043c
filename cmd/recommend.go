package cmd

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/parish-explorer/internal/ai"
	"github.com/KaramelBytes/parish-explorer/internal/recommend"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	recSel         selectionFlags
	recModel       string
	recProvider    string
	recMaxTokens   int
	recTemp        float64
	recDryRun      bool
	recQuiet       bool
	recJSON        bool
	recPrintPrompt bool
	recOutputPath  string
	recOllamaHost  string
	recTimeoutSec  int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Ask for construction business recommendations about the selection",
	Example: `  parishx recommend -m "GDP (2023)" --dry-run
  parishx recommend -m "GDP (2023)" -m "Population (2023)" --provider openrouter --model openai/gpt-4o-mini
  parishx recommend --json --output recs.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if recJSON {
			recQuiet = true
		}
		// Reset flags that can carry over between invocations unless set in THIS run.
		if f := cmd.Flags(); f != nil {
			provided := map[string]bool{}
			f.Visit(func(fl *pflag.Flag) {
				provided[fl.Name] = true
			})
			if !provided["print-prompt"] {
				recPrintPrompt = false
			}
			if !provided["dry-run"] {
				recDryRun = false
			}
			if !provided["timeout-sec"] {
				recTimeoutSec = 120
			}
		}
		w := cmd.OutOrStdout()

		res, _, err := exploreSession(cmd, &recSel)
		if err != nil {
			return err
		}
		req := recommend.Request{
			Metrics:   res.Metrics,
			Parishes:  res.Parishes,
			AnyBottom: recSel.flags().AnyBottom(),
		}
		model := selectModel(cfg, recModel)

		maxTokens := recMaxTokens
		if maxTokens == 0 && cfg != nil {
			maxTokens = cfg.MaxTokens
		}
		temp := recTemp
		if temp == 0 && cfg != nil {
			temp = cfg.Temperature
		}

		if recDryRun {
			prompt, err := recommend.BuildPrompt(req.Metrics, req.Parishes, req.AnyBottom)
			if err != nil {
				return err
			}
			kind := recommend.KindFor(len(req.Metrics), req.AnyBottom)
			if !recQuiet {
				sum := sha1.Sum([]byte(prompt))
				fmt.Fprintln(w, "--dry-run: no API call will be made. Prompt preview below --")
				fmt.Fprintf(w, "Request ID (dry-run): sim_%x\n", sum[:6])
				fmt.Fprintf(w, "Prompt: %s, tokens≈%d, parishes=%d\n", kind, recommend.EstimateTokens(prompt), len(req.Parishes))
			}
			fmt.Fprintln(w, prompt)
			return nil
		}

		client, providerName, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: recProvider,
			OllamaHost:   recOllamaHost,
		})
		if err != nil {
			return err
		}
		svc := recommend.NewService(client, model, recommend.WithMaxTokens(maxTokens), recommend.WithTemperature(temp))

		if recPrintPrompt && !recQuiet {
			prompt, _, err := svc.Prompt(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "--print-prompt: sending the following prompt --")
			fmt.Fprintln(w, prompt)
		}

		timeoutSec := recTimeoutSec
		if timeoutSec <= 0 {
			timeoutSec = 120
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSec)*time.Second)
		defer cancel()

		if !recQuiet {
			fmt.Fprintf(w, "⚙ Requesting recommendations from %s (model=%s, parishes=%d) ...\n", providerName, model, len(req.Parishes))
		}
		resp, err := svc.Recommend(ctx, req)
		if err != nil {
			return explainRemoteError(err, providerName, model)
		}
		if resp.RequestID != "" && !recQuiet {
			fmt.Fprintf(w, "Request ID: %s\n", resp.RequestID)
		}
		if fb, ok := resp.Result.(recommend.RawTextFallback); ok && !recQuiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %v\n", fb.Err)
		}
		return formatAndWriteOutput(resp, outputOptions{
			JSON:       recJSON,
			Quiet:      recQuiet,
			Model:      model,
			Provider:   providerName,
			OutputPath: recOutputPath,
			Writer:     w,
		})
	},
}

// explainRemoteError adds user-facing hints for the common failure classes.
func explainRemoteError(err error, providerName, model string) error {
	if !errors.Is(err, recommend.ErrRemoteUnavailable) {
		return err
	}
	switch ai.CauseOf(err) {
	case ai.CauseTimeout:
		return fmt.Errorf("request timed out; raise --timeout-sec or http_timeout_sec: %w", err)
	case ai.CauseUnreachable:
		var unreach *ai.UnreachableError
		if providerName == ai.ProviderOllama && errors.As(err, &unreach) {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (config 'ollama_host' or PARISHX_OLLAMA_HOST). Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case ai.CauseAuth:
		if providerName == ai.ProviderGemini {
			return fmt.Errorf("authentication failed: set GEMINI_API_KEY or add gemini_api_key in config (~/.parishx/config.yaml): %w", err)
		}
		return fmt.Errorf("authentication failed: set OPENROUTER_API_KEY or add api_key in config (~/.parishx/config.yaml): %w", err)
	case ai.CauseRateLimit:
		var rlErr *ai.RateLimitError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case ai.CauseModelNotFound:
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name: %w", model, err)
	case ai.CauseBadRequest:
		return fmt.Errorf("request rejected by provider: %w", err)
	case ai.CauseQuota:
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case ai.CauseServer:
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	}
	return fmt.Errorf("recommendation failed: %w", err)
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recSel.bind(recommendCmd, false)
	recommendCmd.Flags().StringVar(&recModel, "model", "", "override model (default from config default_model)")
	recommendCmd.Flags().StringVar(&recProvider, "provider", "", "provider: gemini|openrouter|ollama (default from config)")
	recommendCmd.Flags().IntVar(&recMaxTokens, "max-tokens", 0, "max tokens for the response")
	recommendCmd.Flags().Float64Var(&recTemp, "temp", 0, "sampling temperature")
	recommendCmd.Flags().BoolVar(&recDryRun, "dry-run", false, "build the prompt and print it without calling the API")
	recommendCmd.Flags().BoolVar(&recPrintPrompt, "print-prompt", false, "print the prompt being sent to the API")
	recommendCmd.Flags().StringVar(&recOutputPath, "output", "", "optional path to write the recommendations")
	recommendCmd.Flags().BoolVar(&recQuiet, "quiet", false, "suppress non-essential output")
	recommendCmd.Flags().BoolVar(&recJSON, "json", false, "emit recommendations as JSON to stdout")
	recommendCmd.Flags().StringVar(&recOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	recommendCmd.Flags().IntVar(&recTimeoutSec, "timeout-sec", 120, "request timeout in seconds")
}
