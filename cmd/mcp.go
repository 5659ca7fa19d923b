package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gavelhq/gavel/internal/git"
	"github.com/gavelhq/gavel/internal/mcp"
)

var mcpProject string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for coding-agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets a coding agent drive reviews natively. Configure with:

  {
    "mcpServers": {
      "gavel": { "command": "gavel", "args": ["mcp"] }
    }
  }

Available tools: gavel_start_review, gavel_continue_review,
gavel_review_status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectPath, err := resolveProjectPath(mcpProject)
		if err != nil {
			return err
		}

		manager, err := getManager(projectPath)
		if err != nil {
			return err
		}
		srv := mcp.NewServer(manager, getOrchestrator(manager), git.NewClient(), buildVersion)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().StringVarP(&mcpProject, "project", "p", "", "Project root (default: current directory)")
	rootCmd.AddCommand(mcpCmd)
}
