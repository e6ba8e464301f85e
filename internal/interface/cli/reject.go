package cli

import (
	"github.com/spf13/cobra"
)

func newRejectCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reject <task-id>",
		Short: "Reject a waiting task without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := newContainer()
			if err != nil {
				return err
			}
			defer container.Close()

			resp, err := container.Coordinator.Reject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTask(resp, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	return cmd
}
