package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/sift/internal/cli"
	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/engine"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <invoice-id>",
		Short: "Confirm or correct a classification",
		Long: `Record your verdict on a classified invoice.

Pass --correct to confirm the classification, or --type (and optionally
--operation) to correct it. Corrections rewrite the invoice and are shown to
the model as examples in later classifications; nothing is reclassified.`,
		Example: `  sift feedback 3f2a... --correct
  sift feedback 3f2a... --type received --operation importaciones`,
		Args: cobra.ExactArgs(1),
		RunE: runFeedback,
	}

	cmd.Flags().Bool("correct", false, "the classification is correct")
	cmd.Flags().String("type", "", "corrected invoice type")
	cmd.Flags().String("operation", "", "corrected operation type (default: keep current; required when turning a non-invoice into emitted or received)")
	cmd.MarkFlagsMutuallyExclusive("correct", "type")
	cmd.MarkFlagsOneRequired("correct", "type")

	return cmd
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	correct, _ := cmd.Flags().GetBool("correct")
	correctedType, _ := cmd.Flags().GetString("type")
	correctedOp, _ := cmd.Flags().GetString("operation")

	userID, err := currentUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	fb, err := engine.NewFeedbackService(store, nil).Submit(ctx, engine.Submission{
		UserID:             userID,
		InvoiceID:          args[0],
		IsCorrect:          correct,
		CorrectedType:      correctedType,
		CorrectedOperation: correctedOp,
	})
	switch {
	case errors.Is(err, common.ErrNotFound):
		return common.NewUserError(fmt.Sprintf("invoice %s not found", args[0]), err)
	case errors.Is(err, common.ErrInvalidFeedback):
		return common.NewUserError("feedback rejected", err)
	case err != nil:
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	if fb.IsCorrect {
		fmt.Println(cli.FormatSuccess("Classification confirmed")) //nolint:forbidigo // User-facing output
		return nil
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Corrected %s / %s to %s / %s", //nolint:forbidigo // User-facing output
		fb.OriginalType, fb.OriginalOperation, fb.CorrectedType, fb.CorrectedOperation)))
	return nil
}
