package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opspilot/opspilot/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the opspilot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opspilot %s\n", buildinfo.GetVersion())
		},
	}
}
