package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/sift/internal/cli"
	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/storage"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Save and restore copies of the database",
		Long: `Checkpoints are full copies of the sift database kept next to it.
An automatic checkpoint is taken before every account book import.`,
	}

	create := &cobra.Command{
		Use:   "create [tag]",
		Short: "Save a checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheckpointCreate,
	}
	create.Flags().StringP("description", "d", "", "what the checkpoint is for")

	cmd.AddCommand(create)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List checkpoints",
		RunE:  runCheckpointList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <tag>",
		Short: "Replace the database with a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckpointRestore,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <tag>",
		Short: "Delete a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckpointDelete,
	})

	return cmd
}

func openCheckpoints(cmd *cobra.Command) (*storage.SQLiteStorage, *storage.CheckpointManager, error) {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	cm, err := storage.NewCheckpointManager(store)
	if err != nil {
		closeStorage(store)
		return nil, nil, fmt.Errorf("failed to open checkpoints: %w", err)
	}
	return store, cm, nil
}

func runCheckpointCreate(cmd *cobra.Command, args []string) error {
	description, _ := cmd.Flags().GetString("description")
	tag := ""
	if len(args) == 1 {
		tag = args[0]
	}

	store, cm, err := openCheckpoints(cmd)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	info, err := cm.Create(cmd.Context(), tag, description)
	if err != nil {
		return checkpointError(tag, err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created checkpoint %s (%d invoices)", info.ID, info.RowCounts["invoices"]))) //nolint:forbidigo // User-facing output
	return nil
}

func runCheckpointList(cmd *cobra.Command, _ []string) error {
	store, cm, err := openCheckpoints(cmd)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	checkpoints, err := cm.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(checkpoints) == 0 {
		fmt.Println(cli.FormatSubtle("No checkpoints.")) //nolint:forbidigo // User-facing output
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tCREATED\tINVOICES\tACCOUNTS\tSIZE\tDESCRIPTION")
	for _, cp := range checkpoints {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			cp.ID,
			cp.CreatedAt.Local().Format("2006-01-02 15:04"),
			cp.RowCounts["invoices"],
			cp.RowCounts["accounts"],
			formatSize(cp.FileSize),
			cp.Description)
	}
	return w.Flush()
}

func runCheckpointRestore(cmd *cobra.Command, args []string) error {
	store, cm, err := openCheckpoints(cmd)
	if err != nil {
		return err
	}

	// Restore closes the database itself.
	if err := cm.Restore(cmd.Context(), args[0]); err != nil {
		closeStorage(store)
		return checkpointError(args[0], err)
	}

	fmt.Println(cli.FormatSuccess("Restored checkpoint " + args[0])) //nolint:forbidigo // User-facing output
	return nil
}

func runCheckpointDelete(cmd *cobra.Command, args []string) error {
	store, cm, err := openCheckpoints(cmd)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if err := cm.Delete(cmd.Context(), args[0]); err != nil {
		return checkpointError(args[0], err)
	}

	fmt.Println(cli.FormatSuccess("Deleted checkpoint " + args[0])) //nolint:forbidigo // User-facing output
	return nil
}

func checkpointError(tag string, err error) error {
	switch {
	case errors.Is(err, storage.ErrCheckpointNotFound):
		return common.NewUserError(fmt.Sprintf("checkpoint %q not found", tag), err)
	case errors.Is(err, storage.ErrCheckpointExists):
		return common.NewUserError(fmt.Sprintf("checkpoint %q already exists", tag), err)
	case errors.Is(err, storage.ErrInvalidCheckpoint), errors.Is(err, storage.ErrCheckpointCorrupted):
		return common.NewUserError(err.Error(), err)
	default:
		return err
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
