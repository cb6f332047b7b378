package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/msmeflow/quoteflow/internal/inbox"
)

func newInboxCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List inbox messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if _, _, err := a.requireUserID(ctx); err != nil {
				return err
			}
			mb, err := a.sc.Mailbox()
			if err != nil {
				return err
			}

			snap, err := mb.Load(ctx)
			if err != nil {
				return err
			}
			for i := 1; i < pages && snap.HasMore; i++ {
				if snap, err = mb.LoadMore(ctx); err != nil {
					return err
				}
			}
			return printMessages(cmd, snap)
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")

	return cmd
}

func printMessages(cmd *cobra.Command, snap inbox.Snapshot) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tFROM\tSUBJECT")
	for _, m := range snap.Messages {
		marker := ""
		if m.Unread {
			marker = "* "
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\n", m.ID, m.Date, m.From, marker, m.Subject)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if snap.HasMore {
		fmt.Fprintf(cmd.OutOrStdout(), "\nMore messages available, use --pages %d\n", snap.Page+1)
	}
	return nil
}
