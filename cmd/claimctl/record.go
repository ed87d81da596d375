package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func recordCmd(rt runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect stored claim records",
	}

	var output string
	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored record by storage key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			if output == outputText {
				output = outputYAML
			}

			records, closeFn, err := rt.records(cmd.Context())
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer closeFn()

			record, err := records.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), record, output)
		},
	}
	get.Flags().StringVarP(&output, "output", "o", outputYAML, "output format (json, yaml)")

	cmd.AddCommand(get)
	return cmd
}
