package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCommentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-comments <blog>",
		Short: "Delete all comments of a blog post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blogID, err := parseBlogID(args[0])
			if err != nil {
				return err
			}

			n, err := newAPIClient().DeleteComments(cmd.Context(), blogID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, map[string]int64{"deleted": n})
			}
			_, _ = fmt.Fprintf(out, "Deleted %d comments from blog post %d.\n", n, blogID)
			return nil
		},
	}
}
