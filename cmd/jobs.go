package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/quizforge/internal/jobs"
	"github.com/abhisek/quizforge/internal/quiz"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage background generation jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.jobStore.List(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No jobs.")
			return nil
		}
		fmt.Fprintf(out, "%-36s  %-10s  %-9s  %-20s  %s\n", "ID", "STATUS", "PROGRESS", "CREATED", "QUESTIONS")
		for _, job := range list {
			fmt.Fprintf(out, "%-36s  %-10s  %8d%%  %-20s  %d\n",
				job.ID, job.Status, job.Progress,
				job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				job.Params.Options.NumQuestions)
		}
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show one job, including its result when completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.jobStore.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		raw, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.jobStore.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s.\n", args[0])
		return nil
	},
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Queue a generation job for the server to pick up",
	Long:  "Create a pending job from a text file (or stdin). The job runs the next time 'quizforge serve' starts, or immediately if a server is already watching the queue database.",
	Args:  cobra.MaximumNArgs(1),
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

		job, err := a.jobStore.Create(cmd.Context(), jobs.Params{Text: text, Options: opts})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s.\n", job.ID)
		return nil
	},
}

func init() {
	f := jobsSubmitCmd.Flags()
	f.IntP("num", "n", quiz.DefaultQuestions, "Number of questions (1-50)")
	f.String("difficulty", string(quiz.RequestMixed), "Difficulty: easy, medium, hard or mixed")
	f.String("bloom", string(quiz.BloomApply), "Bloom level: remember, understand, apply, analyze, evaluate or create")
	f.String("provider", "", "Provider override for this request")
	f.Bool("no-cache", false, "Bypass the question cache")
	f.Bool("no-parallel", false, "Disable fan-out for large requests")
	f.Bool("no-quality", false, "Skip quality scoring")
	f.Bool("no-dedup", false, "Skip deduplication")
	f.Bool("no-balance", false, "Skip difficulty balancing")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
}
