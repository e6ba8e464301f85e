package cli

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func newApproveCmd() *cobra.Command {
	var jsonOutput bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "approve <task-id>",
		Short: "Approve a waiting task and run its plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := newContainer()
			if err != nil {
				return err
			}
			defer container.Close()

			id := args[0]
			if !yes {
				current, err := container.Coordinator.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if current.Plan != nil {
					fmt.Println(current.Plan.Summary)
					for _, step := range current.Plan.Steps {
						fmt.Printf("  - %s\n", step)
					}
				}
				prompt := promptui.Prompt{
					Label:     fmt.Sprintf("Approve task %s", id),
					IsConfirm: true,
				}
				if _, err := prompt.Run(); err != nil {
					if errors.Is(err, promptui.ErrAbort) {
						fmt.Println("aborted")
						return nil
					}
					return err
				}
			}

			resp, err := container.Coordinator.Approve(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printTask(resp, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
