package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/sift/internal/accountbook"
	"github.com/Veraticus/sift/internal/cli"
	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/storage"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts used for ledger matching",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the chart of accounts with a spreadsheet or CSV export",
		Long: `Import a chart of accounts from an .xlsx workbook or a CSV file.

The first sheet is read. A header row naming the code and description
columns is detected when present; otherwise the first two columns are used.
Importing replaces every account of the previous book.`,
		Args: cobra.ExactArgs(1),
		RunE: runAccountsImport,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the current chart of accounts",
		RunE:  runAccountsList,
	})

	return cmd
}

func runAccountsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	userID, err := currentUser()
	if err != nil {
		return err
	}

	accounts, err := accountbook.LoadFile(args[0])
	if err != nil {
		if errors.Is(err, accountbook.ErrUnsupportedFormat) || errors.Is(err, accountbook.ErrNoAccounts) {
			return common.NewUserError(fmt.Sprintf("cannot import %s", args[0]), err)
		}
		return fmt.Errorf("failed to load account book: %w", err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if cm, err := storage.NewCheckpointManager(store); err == nil {
		if _, err := cm.AutoCheckpoint(ctx, "accounts-import"); err != nil {
			slog.Warn("Continuing without checkpoint", "error", err)
		}
	}

	book := &model.AccountBook{
		UserID:   userID,
		FileName: filepath.Base(args[0]),
	}
	if err := store.ReplaceAccountBook(ctx, book, accounts); err != nil {
		return fmt.Errorf("failed to save account book: %w", err)
	}

	slog.Info("Imported account book", "file", book.FileName, "accounts", book.AccountCount, "user", userID)
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d accounts from %s", book.AccountCount, book.FileName))) //nolint:forbidigo // User-facing output
	return nil
}

func runAccountsList(cmd *cobra.Command, _ []string) error {
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

	book, err := store.GetAccountBook(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		fmt.Println(cli.FormatSubtle("No account book imported. Run `sift accounts import <file>`.")) //nolint:forbidigo // User-facing output
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load account book: %w", err)
	}

	accounts, err := store.GetAccounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("%s (%d accounts, imported %s)", //nolint:forbidigo // User-facing output
		book.FileName, book.AccountCount, book.ImportedAt.Local().Format("2006-01-02 15:04"))))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tDESCRIPTION")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\n", a.Code, a.Description)
	}
	return w.Flush()
}
