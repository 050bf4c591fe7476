package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/spf13/cobra"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Print the backlog statechart",
	Long:  `Prints the backlog chart, built with the configured policies, as an indented tree or a Mermaid state diagram.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		policy, err := cfg.BacklogPolicy()
		if err != nil {
			return err
		}

		// The chart's structure does not depend on the backend.
		def, err := backlog.NewDefinition(memory.NewStore(), backlog.WithPolicy(policy))
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "text":
			fmt.Fprint(cmd.OutOrStdout(), def.Describe())
		case "mermaid":
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, nil))
		default:
			return fmt.Errorf("unknown format %q (supported: text, mermaid)", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringP("format", "f", "text", "Output format: 'text' or 'mermaid'")
}
