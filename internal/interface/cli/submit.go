package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var jsonOutput bool
	var requireApproval bool

	cmd := &cobra.Command{
		Use:   "submit <request text>",
		Short: "Submit an operational request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := newContainer()
			if err != nil {
				return err
			}
			defer container.Close()

			request := strings.Join(args, " ")
			submit := container.Coordinator.Submit
			if requireApproval {
				submit = container.Coordinator.SubmitRequiringApproval
			}
			resp, err := submit(cmd.Context(), request)
			if err != nil {
				return err
			}
			return printTask(resp, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&requireApproval, "require-approval", false, "always gate execution behind approval")
	return cmd
}
