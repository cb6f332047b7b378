package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msmeflow/quoteflow/internal/quotation"
)

func newQuoteCmd() *cobra.Command {
	var (
		file      string
		messageID string
		priceList string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Generate a quotation from email text",
		Long: `Generate a quotation table from a customer email and export it.

The email text is read from --file, from a Gmail message with --message, or
from stdin. --price-list fills empty rates from one of your uploaded price
lists (see 'quoteflow files list'). The output format follows the extension
of --output (.pdf, .xlsx or .json); without --output the table is printed
as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			userID, token, err := a.requireUserID(ctx)
			if err != nil {
				return err
			}

			content, err := emailContent(ctx, a, file, messageID, cmd.InOrStdin())
			if err != nil {
				return err
			}
			gen, err := a.sc.Generator().Generate(ctx, token, content)
			if err != nil {
				return err
			}
			if gen.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the generated quotation could not be read, a placeholder row was used")
			}

			if priceList != "" {
				data, err := a.sc.Files().Open(ctx, userID, priceList)
				if err != nil {
					return fmt.Errorf("failed to open price list %s: %w", priceList, err)
				}
				prices, err := quotation.LoadPriceList(data)
				if err != nil {
					return err
				}
				n := prices.FillRates(gen.Table)
				fmt.Fprintf(cmd.ErrOrStderr(), "Filled %d rate(s) from %s\n", n, priceList)
			}

			if output == "" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(gen.Table)
			}
			data, err := renderQuotation(gen.Table, output, a.sc.PDFOptions())
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote quotation %s to %s\n", gen.Table.QuotationNo, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "File holding the email text")
	cmd.Flags().StringVar(&messageID, "message", "", "Gmail message id to quote for")
	cmd.Flags().StringVar(&priceList, "price-list", "", "Storage path of a price list to fill rates from")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.pdf, .xlsx or .json)")

	return cmd
}

func emailContent(ctx context.Context, a *app, file, messageID string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case file != "":
		data, err = os.ReadFile(file)
	case messageID != "":
		svc, err := a.sc.Inbox()
		if err != nil {
			return "", err
		}
		msg, err := svc.Open(ctx, messageID)
		if err != nil {
			return "", err
		}
		data = []byte(msg.Text)
	default:
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read email text: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", fmt.Errorf("email text is empty")
	}
	return content, nil
}

// renderQuotation encodes t in the format named by the extension of path.
func renderQuotation(t *quotation.Table, path string, pdf quotation.PDFOptions) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return quotation.RenderPDF(t, pdf)
	case ".xlsx":
		return quotation.RenderXLSX(t)
	case ".json":
		return json.MarshalIndent(t, "", "  ")
	}
	return nil, fmt.Errorf("unsupported output format %q, use .pdf, .xlsx or .json", filepath.Ext(path))
}
