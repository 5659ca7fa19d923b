package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gavelhq/gavel/internal/git"
	"github.com/gavelhq/gavel/internal/models"
	"github.com/gavelhq/gavel/internal/orchestrator"
	"github.com/gavelhq/gavel/internal/output"
	"github.com/gavelhq/gavel/internal/session"
)

var (
	reviewProject string
	reviewContext string
	reviewFocus   []string
	reviewMaxIter int
)

var reviewCmd = &cobra.Command{
	Use:   "review [files...]",
	Short: "Run an iterative review until approval or the budget runs out",
	Long: `Run the review loop from the terminal.

Without file arguments, reviews the files git reports as changed in the
project. The loop re-reviews after each has_issues pass and stops on
approval, a clarification request, the iteration budget, or an error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args)
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewProject, "project", "p", "", "Project root (default: current directory)")
	reviewCmd.Flags().StringVarP(&reviewContext, "context", "c", "", "What changed and why")
	reviewCmd.Flags().StringSliceVarP(&reviewFocus, "focus", "f", nil, "Focus areas, e.g. security,error-handling")
	reviewCmd.Flags().IntVar(&reviewMaxIter, "max-iterations", 0, "Iteration budget (default from config)")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context, files []string) error {
	projectPath, err := resolveProjectPath(reviewProject)
	if err != nil {
		return err
	}

	gc := git.NewClient()
	if len(files) == 0 {
		files, err = gc.ChangedFiles(projectPath)
		if err != nil {
			return fmt.Errorf("detect changed files: %w", err)
		}
	}
	if len(files) == 0 {
		ui.Info("Nothing to review: no files given and git reports no changes.")
		return nil
	}

	manager, err := getManager(projectPath)
	if err != nil {
		return err
	}

	maxIterations := reviewMaxIter
	if maxIterations <= 0 {
		maxIterations = viper.GetInt("review.max_iterations")
	}

	sess, err := manager.Create(files, projectPath, maxIterations, session.ResolveAgentSessionID(projectPath))
	if err != nil {
		return fmt.Errorf("create review session: %w", err)
	}
	ui.Info("Review %s: %d file(s), budget %d iteration(s)", sess.ReviewID, len(files), sess.MaxIterations)

	orch := getOrchestrator(manager)
	result, err := orch.Run(ctx, sess.ReviewID, orchestrator.StepOptions{
		Context:    reviewContext,
		FocusAreas: reviewFocus,
	})
	if err != nil {
		return err
	}

	renderResult(sess.ReviewID, result)
	if result.Status == models.StatusError {
		return fmt.Errorf("review failed: %s", result.Summary)
	}
	return nil
}

func renderResult(reviewID string, result *models.Result) {
	fmt.Fprintln(ui.Out)
	switch result.Status {
	case models.StatusApproved:
		ui.Success("Approved after %d iteration(s)", result.Iteration)
	case models.StatusNeedsHuman:
		ui.Warning("Reviewer needs clarification:")
		for _, q := range result.Questions {
			fmt.Fprintf(ui.Out, "  %s %s\n", output.Yellow("?"), q)
		}
	case models.StatusMaxIterations:
		ui.Warning("Iteration budget exhausted after %d iteration(s)", result.Iteration)
	case models.StatusError:
		ui.Error("Review error: %s", result.Summary)
	default:
		ui.Warning("Review ended in %s after %d iteration(s)", output.StatusColor(string(result.Status)), result.Iteration)
	}

	if len(result.Issues) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"SEVERITY", "FILE", "LINE", "MESSAGE"})
		for _, issue := range result.Issues {
			line := ""
			if issue.Line > 0 {
				line = fmt.Sprintf("%d", issue.Line)
			}
			table.Append([]string{
				output.SeverityColor(string(issue.Severity)),
				issue.File,
				line,
				issue.Message,
			})
		}
		_ = table.Render()
	}

	if result.Summary != "" {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan("summary:"), result.Summary)
	}
	ui.VerboseLog("review ID: %s", reviewID)
}
