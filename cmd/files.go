package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/msmeflow/quoteflow/internal/upload"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage uploaded price lists, quotations and PDFs",
	}
	cmd.AddCommand(newFilesListCmd(), newFilesUploadCmd(), newFilesDeleteCmd())
	return cmd
}

func newFilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			userID, _, err := a.requireUserID(ctx)
			if err != nil {
				return err
			}
			files, err := a.sc.Files().List(ctx, userID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tUPLOADED\tPATH")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Name, f.Type, f.Size, f.UploadDate, f.Path)
			}
			return w.Flush()
		},
	}
}

func newFilesUploadCmd() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a price list, past quotation or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := upload.ParseType(typ)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			a, err := bootstrap(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			userID, token, err := a.requireUserID(ctx)
			if err != nil {
				return err
			}
			res, err := a.sc.Files().Upload(ctx, upload.Request{
				UserID:      userID,
				AccessToken: token,
				Type:        t,
				Name:        filepath.Base(args[0]),
				Data:        data,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", res.File.Name, res.File.Path)
			if !res.Ingested {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the file is stored but was not sent for indexing")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(upload.TypePriceList), "Upload type: price-list, quotation or pdf")

	return cmd
}

func newFilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete an uploaded file by its storage path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			userID, _, err := a.requireUserID(ctx)
			if err != nil {
				return err
			}
			if err := a.sc.Files().Delete(ctx, userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
