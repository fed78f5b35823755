package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServerURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server-url [url]",
		Short: "Show or set the server the CLI talks to",
		Long:  "Without arguments prints the server URL in use. With a URL, saves it to ~/.config/blogc/config.yaml. BLOGC_SERVER_URL overrides the saved value.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				u, source := resolveServerURL()
				if isJSON() {
					return printJSON(out, map[string]string{"server_url": u, "source": source})
				}
				_, _ = fmt.Fprintln(out, u)
				return nil
			}

			u, err := normalizeServerURL(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.ServerURL = u
			if err := saveConfig(cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Server URL set to %s\n", cfg.ServerURL)
			return nil
		},
	}
}
