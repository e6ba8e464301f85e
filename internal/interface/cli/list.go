package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tasks in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := newContainer()
			if err != nil {
				return err
			}
			defer container.Close()

			responses, err := container.Coordinator.List(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				b, err := json.MarshalIndent(responses, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal json: %w", err)
				}
				fmt.Println(string(b))
				return nil
			}

			if len(responses) == 0 {
				fmt.Println("no tasks")
				return nil
			}
			for _, resp := range responses {
				fmt.Printf("%s  %-17s  %.1fs\n", resp.TaskID, resp.Status, resp.DurationSeconds)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	return cmd
}
