package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Drive a backlog session interactively",
	Long: `Starts one backlog session and reads commands from Stdin.
Type 'help' for the command list. Tag changes are printed as they happen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, sigCtx, err := setup(cmd)
		if err != nil {
			return err
		}
		defer sigCtx.Cancel()
		defer app.Close()

		sess, err := app.Sessions.Create(sigCtx)
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		interactive := term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
		opts := []cli.REPLOption{cli.WithREPLLogger(app.Logger)}

		if interactive {
			tui.PrintBanner(os.Stdout, strings.TrimSpace(arbor.Version))
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				width = 0
			}
			render, err := tui.NewRenderer(width)
			if err != nil {
				app.Logger.Warn("Markdown renderer unavailable, using plain output", "error", err)
			} else {
				opts = append(opts, cli.WithRenderer(render))
			}
			opts = append(opts, cli.WithPrompt("> "))
			fmt.Printf(">>> Session '%s' active. Type 'help' for commands.\n", sess.ID)
		}

		noNotify, _ := cmd.Flags().GetBool("quiet")
		opts = append(opts, cli.WithNotifications(!noNotify))

		if err := cli.NewREPL(sess.Backlog, os.Stdin, os.Stdout, opts...).Run(sigCtx); err != nil {
			return err
		}
		if sig := sigCtx.Signal(); sig != nil && interactive {
			fmt.Printf("\n>>> Interrupted (%v).\n", sig)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().BoolP("quiet", "q", false, "Do not print tag changes")
}
