package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentgauge/agentgauge/internal/models"
	"github.com/agentgauge/agentgauge/internal/validation"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <batch.yaml>",
		Short: "Validate a batch definition file",
		Long: `Validate a batch definition file against the schema and semantic rules
without running anything.`,
		Args: cobra.ExactArgs(1),
		RunE: validateCommandE,
	}
}

func validateCommandE(cmd *cobra.Command, args []string) error {
	batchPath := args[0]

	errs, err := validation.ValidateBatchFile(batchPath)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Println(e)
		}
		return fmt.Errorf("%s: %d schema error(s)", batchPath, len(errs))
	}

	// Semantic checks the schema cannot express (duplicate ids).
	if _, err := models.LoadBatchSpec(batchPath); err != nil {
		return err
	}

	fmt.Printf("%s is valid\n", batchPath)
	return nil
}
