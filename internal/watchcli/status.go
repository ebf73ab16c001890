package watchcli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <meeting-id>",
	Short: "Show a meeting's status snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		snap, err := client.MeetingStatus(context.Background(), args[0])
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if handled, err := writeOutput(snap); handled {
			if err != nil {
				exitWithError(cmd, err)
			}
			return
		}

		tw := newTable()
		fmt.Fprintf(tw, "Field\tValue\n")
		fmt.Fprintf(tw, "Meeting\t%s\n", snap.MeetingID)
		fmt.Fprintf(tw, "Status\t%s\n", snap.Status)
		fmt.Fprintf(tw, "Round\t%d/%d\n", snap.CurrentRound, snap.MaxRounds)
		fmt.Fprintf(tw, "Messages\t%d\n", snap.MessageCount)
		fmt.Fprintf(tw, "Background\t%t\n", snap.BackgroundRunning)
		flushTable(tw)
	},
}
