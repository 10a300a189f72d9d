package cli

import (
	"fmt"
	"runtime"

	"github.com/fmueller/voxtalk/internal/device"
	"github.com/spf13/cobra"
)

func newDevicesCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio devices and backend diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := device.DefaultBackends(runtime.GOOS)
			if len(backends) == 0 {
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}

			out := cmd.OutOrStdout()
			for _, backend := range backends {
				fmt.Fprintf(out, "== %s ==\n", backend.Name())
				if !backend.Available() {
					fmt.Fprintln(out, "not available on PATH")
					fmt.Fprintln(out)
					continue
				}

				list, err := backend.ListDevices(cmd.Context())
				if err != nil {
					fmt.Fprintf(out, "failed to list devices: %v\n\n", err)
					continue
				}

				if list == "" {
					fmt.Fprintln(out, "no output")
					fmt.Fprintln(out)
					continue
				}

				fmt.Fprintln(out, list)
				fmt.Fprintln(out)
			}

			if app.backend != "" && app.backend != "auto" {
				if _, err := device.NewBackend(app.backend); err != nil {
					fmt.Fprintf(out, "selected backend: %v\n", err)
				} else {
					fmt.Fprintf(out, "selected backend: %s\n", app.backend)
				}
			}
			return nil
		},
	}
}
