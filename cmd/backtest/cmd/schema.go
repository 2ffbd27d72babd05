package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fxsim/backtester/internal/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for a run's YAML config",
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	empty := config.EmptyConfig()

	out, err := empty.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}

	fmt.Println(out)

	return nil
}
