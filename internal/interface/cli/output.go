package cli

import (
	"encoding/json"
	"fmt"

	"github.com/opspilot/opspilot/internal/application/dto"
)

// printTask renders a task response, either as indented JSON or as a
// short human-readable summary.
func printTask(resp *dto.TaskResponse, jsonOutput bool) error {
	if jsonOutput {
		b, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	fmt.Printf("Task    : %s\n", resp.TaskID)
	fmt.Printf("Status  : %s\n", resp.Status)
	if resp.Plan != nil {
		fmt.Printf("Plan    : %s\n", resp.Plan.Summary)
		for _, step := range resp.Plan.Steps {
			fmt.Printf("  - %s\n", step)
		}
	}
	if resp.Diagnosis != nil {
		fmt.Printf("Cause   : %s\n", resp.Diagnosis.RootCause)
	}
	if len(resp.Commands) > 0 {
		fmt.Println("Commands:")
		for _, c := range resp.Commands {
			fmt.Printf("  %s\n", c)
		}
	}
	if resp.Error != "" {
		fmt.Printf("Error   : %s\n", resp.Error)
	}
	for _, e := range resp.Errors {
		fmt.Printf("  warn: %s\n", e)
	}
	return nil
}
