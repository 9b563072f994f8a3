package main

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"FinScore/internal/domain/models"
	applogger "FinScore/pkg/logger"
)

func inspectCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode a persisted bundle and print its self-description",
		Example: `  modelctl inspect --key models/42.json
  modelctl inspect --key decision_model.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			t, err := initTooling()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := t.Close(); cerr != nil {
					t.Log.Warn("close failed", applogger.Error(cerr))
				}
			}()

			data, err := t.Store.Get(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			b, err := t.Codec.Decode(data)
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			return printJSON(cmd, describe(b))
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "artifact key")
	return cmd
}

type bundleDescription struct {
	Version        string                   `json:"version"`
	Kind           models.BundleKind        `json:"kind"`
	UserID         string                   `json:"user_id,omitempty"`
	TrainedAt      time.Time                `json:"trained_at"`
	FeatureColumns []models.FeatureColumn   `json:"feature_columns"`
	Categories     []string                 `json:"categories"`
	Labels         map[int]models.LabelInfo `json:"labels,omitempty"`
	Metadata       *models.TrainingMetadata `json:"metadata,omitempty"`
}

func describe(b *models.ModelBundle) bundleDescription {
	return bundleDescription{
		Version:        b.Version,
		Kind:           b.Kind,
		UserID:         b.UserID,
		TrainedAt:      b.TrainedAt,
		FeatureColumns: b.FeatureColumns,
		Categories:     b.Encoder.Labels(),
		Labels:         b.LabelSemantics,
		Metadata:       b.Metadata,
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
