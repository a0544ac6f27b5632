package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/sift/internal/cli"
	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

func invoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Manage uploaded invoices",
	}

	cmd.AddCommand(invoicesAddCmd())
	cmd.AddCommand(invoicesListCmd())
	cmd.AddCommand(invoicesShowCmd())
	cmd.AddCommand(invoicesResetCmd())

	return cmd
}

func invoicesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Upload documents as pending invoices",
		Long: `Copy documents into the document store and register them as pending
invoices. The client name is the company the invoices belong to; it is how
the classifier tells emitted invoices from received ones.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInvoicesAdd,
	}

	cmd.Flags().String("client", "", "declared owner of the documents (default: user.name from config)")
	_ = viper.BindPFlag("user.name", cmd.Flags().Lookup("client"))

	return cmd
}

func runInvoicesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	userID, err := currentUser()
	if err != nil {
		return err
	}
	clientName := strings.TrimSpace(viper.GetString("user.name"))

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	docs, err := initDocumentStore()
	if err != nil {
		return err
	}

	for _, file := range args {
		data, err := os.ReadFile(file) //nolint:gosec // Reading user-specified documents
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		id := uuid.NewString()
		name := filepath.Base(file)
		mimeType := mimetype.Detect(data).String()
		key := fmt.Sprintf("%s/%s%s", userID, id, strings.ToLower(filepath.Ext(name)))

		if err := docs.Put(ctx, key, data, mimeType); err != nil {
			return fmt.Errorf("failed to store %s: %w", file, err)
		}

		if err := store.CreateInvoice(ctx, &model.Invoice{
			ID:         id,
			UserID:     userID,
			FilePath:   key,
			FileName:   name,
			MIMEType:   mimeType,
			ClientName: clientName,
		}); err != nil {
			return fmt.Errorf("failed to register %s: %w", file, err)
		}

		fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s  %s", id, name))) //nolint:forbidigo // User-facing output
	}

	if clientName == "" {
		fmt.Println(cli.FormatWarning("No client name set; invoices will fail classification until one is given with --client.")) //nolint:forbidigo // User-facing output
	}

	return nil
}

func invoicesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices and their classification",
		RunE:  runInvoicesList,
	}

	cmd.Flags().String("status", "", "only show invoices with this status (pending, classified, error)")
	cmd.Flags().Int("limit", 0, "maximum number of invoices to show")

	return cmd
}

func runInvoicesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	userID, err := currentUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	invoices, err := store.ListInvoices(ctx, service.InvoiceFilter{
		UserID: userID,
		Status: model.ClassificationStatus(status),
		Limit:  limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}

	if len(invoices) == 0 {
		fmt.Println(cli.FormatSubtle("No invoices found.")) //nolint:forbidigo // User-facing output
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tSTATUS\tTYPE\tOPERATION\tACCOUNT\tFEEDBACK")
	for _, inv := range invoices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID,
			inv.FileName,
			inv.ClassificationStatus,
			dash(string(inv.InvoiceType)),
			dash(string(inv.OperationType)),
			dash(accountLabel(inv.AssignedAccount)),
			dash(string(inv.FeedbackStatus)))
	}
	return w.Flush()
}

func invoicesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one invoice in detail",
		Args:  cobra.ExactArgs(1),
		RunE:  runInvoicesShow,
	}
}

func runInvoicesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	userID, err := currentUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	inv, err := store.GetInvoice(ctx, args[0])
	if err != nil || inv.UserID != userID {
		return common.NewUserError(fmt.Sprintf("invoice %s not found", args[0]), common.ErrNotFound)
	}

	docs, err := initDocumentStore()
	if err != nil {
		return err
	}
	url, err := docs.AccessURL(ctx, inv.FilePath, 15*time.Minute)
	if err != nil {
		url = "unavailable (" + err.Error() + ")"
	}

	d := inv.ClassificationDetails
	lines := []string{
		cli.FormatTitle(inv.FileName),
		cli.FormatField("ID", inv.ID),
		cli.FormatField("Client", dash(inv.ClientName)),
		cli.FormatField("Status", cli.FormatStatus(inv.ClassificationStatus)),
		cli.FormatField("Type", dash(string(inv.InvoiceType))),
		cli.FormatField("Operation", dash(string(inv.OperationType))),
		cli.FormatField("Account", dash(accountLabel(inv.AssignedAccount))),
		cli.FormatField("Feedback", dash(string(inv.FeedbackStatus))),
		cli.FormatField("Document", url),
	}
	if inv.ClassificationStatus == model.StatusClassified {
		lines = append(lines,
			cli.FormatField("Confidence", fmt.Sprintf("%.0f%%", d.Confidence*100)),
			cli.FormatField("Description", dash(d.Description)),
			cli.FormatField("Number", dash(d.InvoiceNumber)),
			cli.FormatField("Date", dash(d.InvoiceDate)),
			cli.FormatField("Tax base", cli.FormatAmount(d.TaxBase, d.Currency)),
			cli.FormatField("VAT", cli.FormatAmount(d.VATAmount, d.Currency)),
			cli.FormatField("Total", cli.FormatAmount(d.TotalAmount, d.Currency)),
			cli.FormatField("Reasoning", dash(d.Reasoning)))
		if d.CorrectionNote != "" {
			lines = append(lines, cli.FormatField("Note", d.CorrectionNote))
		}
	}
	if d.Error != "" {
		lines = append(lines, cli.FormatField("Error", cli.FormatError(d.Error)))
	}

	for _, line := range lines {
		fmt.Println(line) //nolint:forbidigo // User-facing output
	}
	return nil
}

func invoicesResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>...",
		Short: "Put invoices back to pending so they are classified again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			for _, id := range args {
				inv, err := store.GetInvoice(ctx, id)
				if err != nil || inv.UserID != userID {
					return common.NewUserError(fmt.Sprintf("invoice %s not found", id), common.ErrNotFound)
				}
				if err := store.ResetClassification(ctx, id); err != nil {
					return fmt.Errorf("failed to reset %s: %w", id, err)
				}
				fmt.Println(cli.FormatSuccess("reset " + id)) //nolint:forbidigo // User-facing output
			}
			return nil
		},
	}
}

func accountLabel(account *string) string {
	if account == nil {
		return ""
	}
	return *account
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
