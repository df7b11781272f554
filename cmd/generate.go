package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/quizforge/internal/pipeline"
	"github.com/abhisek/quizforge/internal/quiz"
)

var generateCmd = &cobra.Command{
	Use:   "generate [file...]",
	Short: "Generate questions from source text",
	Long:  "Generate multiple-choice questions from the given text files, or from stdin when no file is named. With several files the requests run sequentially, paced for vendor rate limits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(cmd)
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		output, _ := cmd.Flags().GetString("output")

		if len(args) > 1 {
			texts := make([]string, len(args))
			for i, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				texts[i] = string(raw)
			}
			results, err := a.pipeline.BatchGenerate(cmd.Context(), texts, opts)
			if err != nil {
				return err
			}
			return writeBatch(cmd, args, results, output)
		}

		var text string
		if len(args) == 1 {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			text = string(raw)
		} else {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = string(raw)
		}

		qs, err := a.pipeline.Generate(cmd.Context(), text, opts)
		if err != nil {
			return err
		}
		return writeQuestionset(cmd, qs, output)
	},
}

func init() {
	f := generateCmd.Flags()
	f.IntP("num", "n", quiz.DefaultQuestions, "Number of questions (1-50)")
	f.String("difficulty", string(quiz.RequestMixed), "Difficulty: easy, medium, hard or mixed")
	f.String("bloom", string(quiz.BloomApply), "Bloom level: remember, understand, apply, analyze, evaluate or create")
	f.String("provider", "", "Provider override for this request")
	f.Bool("no-cache", false, "Bypass the question cache")
	f.Bool("no-parallel", false, "Disable fan-out for large requests")
	f.Bool("no-quality", false, "Skip quality scoring")
	f.Bool("no-dedup", false, "Skip deduplication")
	f.Bool("no-balance", false, "Skip difficulty balancing")
	f.StringP("output", "o", "", "Write JSON to file instead of stdout")
}

func optionsFromFlags(cmd *cobra.Command) (quiz.Options, error) {
	cfg := cmd.Flags()
	opts := quiz.DefaultOptions()

	opts.NumQuestions, _ = cfg.GetInt("num")
	difficulty, _ := cfg.GetString("difficulty")
	opts.Difficulty = quiz.RequestedDifficulty(difficulty)
	bloom, _ := cfg.GetString("bloom")
	opts.BloomLevel = quiz.BloomLevel(bloom)
	opts.Provider, _ = cfg.GetString("provider")

	if v, _ := cfg.GetBool("no-cache"); v {
		opts.NoCache = true
	}
	if v, _ := cfg.GetBool("no-parallel"); v {
		opts.Parallel = false
	}
	if v, _ := cfg.GetBool("no-quality"); v {
		opts.QualityCheck = false
	}
	if v, _ := cfg.GetBool("no-dedup"); v {
		opts.Deduplicate = false
	}
	if v, _ := cfg.GetBool("no-balance"); v {
		opts.BalanceDifficulty = false
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts.Normalized(), nil
}

func writeQuestionset(cmd *cobra.Command, qs *quiz.Questionset, output string) error {
	raw, err := json.MarshalIndent(qs, "", "  ")
	if err != nil {
		return err
	}
	if output != "" {
		if err := os.WriteFile(output, append(raw, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d questions to %s (provider %s, model %s)\n",
			len(qs.Questions), output, qs.Metadata.Provider, qs.Metadata.Model)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}

// batchEntry is one slot of the combined batch output.
type batchEntry struct {
	Source    string            `json:"source"`
	Error     string            `json:"error,omitempty"`
	Questions *quiz.Questionset `json:"questionset,omitempty"`
}

func writeBatch(cmd *cobra.Command, names []string, results []pipeline.BatchResult, output string) error {
	entries := make([]batchEntry, len(results))
	failed := 0
	for i, res := range results {
		entries[i] = batchEntry{Source: names[i], Questions: res.Questionset}
		if res.Err != nil {
			entries[i].Error = res.Err.Error()
			entries[i].Questions = nil
			failed++
		}
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if output != "" {
		if err := os.WriteFile(output, append(raw, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batch requests failed", failed, len(results))
	}
	return nil
}
