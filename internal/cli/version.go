package cli

import (
	"fmt"

	"github.com/fmueller/voxtalk/internal/platform"
	"github.com/fmueller/voxtalk/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.Details(), platform.CurrentRuntime())
			return nil
		},
	}
}
