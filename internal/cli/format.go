package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/evcraddock/blogcomments/internal/comment"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCommentList prints comments in text format.
func printCommentList(w io.Writer, comments []*comment.Comment) {
	if len(comments) == 0 {
		_, _ = fmt.Fprintln(w, "No comments.")
		return
	}

	for _, c := range comments {
		_, _ = fmt.Fprintf(w, "[%s] #%d (%s)\n  %s\n",
			c.CreatedAt.Format("2006-01-02 15:04"), c.ID, c.Name, c.Content)
		if c.ImageURL != "" {
			_, _ = fmt.Fprintf(w, "  image: %s\n", c.ImageURL)
		}
		_, _ = fmt.Fprintln(w)
	}
}

// printCommentSingle prints a single comment in text format.
func printCommentSingle(w io.Writer, c *comment.Comment) {
	_, _ = fmt.Fprintf(w, "Comment #%d added to blog post %d.\n  %s\n", c.ID, c.BlogID, c.Content)
	if c.ImageURL != "" {
		_, _ = fmt.Fprintf(w, "  image: %s\n", c.ImageURL)
	}
}

// printCountTable prints comment counts per blog post as a table.
func printCountTable(w io.Writer, counts []comment.BlogCount) error {
	if len(counts) == 0 {
		_, _ = fmt.Fprintln(w, "No comments.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "BLOG\tCOMMENTS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(tw, "----\t--------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	total := 0
	for _, bc := range counts {
		if _, err := fmt.Fprintf(tw, "%d\t%d\n", bc.BlogID, bc.Count); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
		total += bc.Count
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, _ = fmt.Fprintf(w, "\nTotal: %d comments\n", total)
	return nil
}
