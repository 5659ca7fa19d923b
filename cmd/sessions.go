package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gavelhq/gavel/internal/output"
)

var sessionsProject string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and inspect review sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsListRun()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review sessions for the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsListRun()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show one review session with its iteration history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsShowRun(args[0])
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <review-id>",
	Short: "Delete a review session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsDeleteRun(args[0])
	},
}

func init() {
	sessionsCmd.PersistentFlags().StringVarP(&sessionsProject, "project", "p", "", "Project root (default: current directory)")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func sessionsListRun() error {
	projectPath, err := resolveProjectPath(sessionsProject)
	if err != nil {
		return err
	}
	manager, err := getManager(projectPath)
	if err != nil {
		return err
	}

	sessions, err := manager.List(projectPath)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ui.Info("No review sessions for %s", projectPath)
		return nil
	}

	table := ui.Table([]string{"REVIEW ID", "STATUS", "ITER", "FILES", "UPDATED"})
	for _, s := range sessions {
		_ = table.Append([]string{
			s.ReviewID,
			output.StatusColor(string(s.Status)),
			fmt.Sprintf("%d/%d", s.Iteration, s.MaxIterations),
			fmt.Sprintf("%d", len(s.Files)),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}

func sessionsShowRun(reviewID string) error {
	projectPath, err := resolveProjectPath(sessionsProject)
	if err != nil {
		return err
	}
	manager, err := getManager(projectPath)
	if err != nil {
		return err
	}

	sess, err := manager.Get(reviewID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("review session not found: %s", reviewID)
	}

	fmt.Fprintf(ui.Out, "Review:     %s\n", sess.ReviewID)
	fmt.Fprintf(ui.Out, "Status:     %s\n", output.StatusColor(string(sess.Status)))
	fmt.Fprintf(ui.Out, "Project:    %s\n", sess.ProjectPath)
	fmt.Fprintf(ui.Out, "Agent:      %s\n", sess.AgentSessionID)
	fmt.Fprintf(ui.Out, "Iteration:  %d/%d\n", sess.Iteration, sess.MaxIterations)
	fmt.Fprintf(ui.Out, "Files:      %s\n", strings.Join(sess.Files, ", "))
	fmt.Fprintf(ui.Out, "Created:    %s\n", sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(ui.Out, "Updated:    %s\n", sess.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	if len(sess.PendingQs) > 0 {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "Pending questions:")
		for _, q := range sess.PendingQs {
			fmt.Fprintf(ui.Out, "  %s %s\n", output.Yellow("?"), q)
		}
	}

	for _, it := range sess.History {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "%s %s\n",
			output.Cyan(fmt.Sprintf("-- iteration %d", it.Iteration)),
			it.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(ui.Out, "%s\n", it.ReviewerFeedback)
		if it.ExternalChanges != "" {
			fmt.Fprintf(ui.Out, "changes: %s\n", it.ExternalChanges)
		}
		for k, v := range it.HumanAnswers {
			fmt.Fprintf(ui.Out, "%s %s: %s\n", output.Green("answer"), k, v)
		}
	}
	return nil
}

func sessionsDeleteRun(reviewID string) error {
	projectPath, err := resolveProjectPath(sessionsProject)
	if err != nil {
		return err
	}
	manager, err := getManager(projectPath)
	if err != nil {
		return err
	}

	sess, err := manager.Get(reviewID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("review session not found: %s", reviewID)
	}

	if err := manager.Delete(reviewID); err != nil {
		return err
	}
	ui.Success("Deleted review session %s", reviewID)
	return nil
}
