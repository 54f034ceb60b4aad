package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"travelkit/schema"
)

type validationReport struct {
	Kind       schema.Kind `json:"kind"`
	File       string      `json:"file"`
	Valid      bool        `json:"valid"`
	Violations []string    `json:"violations,omitempty"`
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate snapshot|catalog FILE",
		Short: "Check a snapshot or catalog file against its JSON Schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, path := schema.Kind(args[0]), args[1]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			var doc any
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			report := validationReport{Kind: kind, File: path, Valid: true}
			err = schema.Validate(kind, doc)
			var verr *schema.ValidationError
			switch {
			case errors.As(err, &verr):
				report.Valid = false
				report.Violations = verr.Violations
			case err != nil:
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%s: %d schema violation(s)", path, len(report.Violations))
			}
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema snapshot|catalog",
		Short: "Print the JSON Schema for a document kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := schema.Raw(schema.Kind(args[0]))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}
