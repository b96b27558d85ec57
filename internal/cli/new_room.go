package cli

import (
	"fmt"

	"github.com/dkeye/Trio/internal/domain"
	"github.com/spf13/cobra"
)

var newRoomCmd = &cobra.Command{
	Use:   "new-room",
	Short: "Print a fresh unguessable room id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := domain.NewRoomID()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), roomStyle.Render(string(id)))
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("trio join --room "+string(id)))
		return nil
	},
}
