package cmd

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/theapemachine/docprovider/pkg/ui"
)

var (
	browseCmd = &cobra.Command{
		Use:   "browse",
		Short: "Browse the roots in the terminal",
		Long:  longBrowse,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := os.Getenv("TEA_LOGFILE")
			if path != "" {
				f, err := tea.LogToFile(path, "browse")
				if err != nil {
					log.Error("could not open logfile", "error", err)
					return err
				}
				defer f.Close()
			}

			st, err := newStack(cmd.Context(), cfg, stackOptions{})
			if err != nil {
				return err
			}

			runErr := ui.Run(cmd.Context(), st.provider, st.hub)

			if err := st.Close(cmd.Context()); err != nil {
				log.Error("failed to close provider", "error", err)
			}

			return runErr
		},
	}
)

func init() {
	rootCmd.AddCommand(browseCmd)
}

var longBrowse = `
Browse the configured roots in a terminal file manager.

Keys: enter opens, backspace goes up, n creates a folder, d deletes,
r refreshes and q quits. Set TEA_LOGFILE to capture debug output.
`
