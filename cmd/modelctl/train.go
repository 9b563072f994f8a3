package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"FinScore/internal/domain/models"
	applogger "FinScore/pkg/logger"
)

func trainCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and persist the expense model of one user",
		Long: `Train the per-user expense regressor from the transaction store, persist it
to the artifact store and print its training metadata. Serving instances pick
the new bundle up on their next reload.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return runTrain(cmd, models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: userID})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func trainDecisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train-decision",
		Short: "Train and persist the shared decision model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, models.RetrainTarget{Kind: models.BundleDecisionClassifier})
		},
	}
}

func runTrain(cmd *cobra.Command, target models.RetrainTarget) error {
	t, err := initTooling()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			t.Log.Warn("close failed", applogger.Error(cerr))
		}
	}()

	b, err := t.Pipeline.Train(cmd.Context(), target)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return printJSON(cmd, describe(b))
}
