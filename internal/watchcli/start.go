package watchcli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roundtable-labs/roundsync/internal/meetingsync"
)

var startCmd = &cobra.Command{
	Use:   "start <meeting-id>",
	Short: "Start discussion rounds in a meeting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rounds, _ := cmd.Flags().GetInt("rounds")
		topic, _ := cmd.Flags().GetString("topic")
		locale, _ := cmd.Flags().GetString("locale")

		client := newClient()
		ch := meetingsync.NewStreamChannel(client, args[0], meetingsync.StreamCallbacks{})
		defer ch.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ch.Connect(ctx); err != nil {
			exitWithError(cmd, err)
			return
		}
		ch.StartRound(rounds, topic, locale)

		// Give the write a moment to flush before tearing the socket down.
		time.Sleep(200 * time.Millisecond)
		fmt.Fprintf(cmd.OutOrStdout(), "Requested %d round(s). Follow along with 'roundsync watch %s'.\n", rounds, args[0])
	},
}

func init() {
	startCmd.Flags().Int("rounds", 1, "Number of rounds to run")
	startCmd.Flags().String("topic", "", "Topic override for this run")
	startCmd.Flags().String("locale", "", "Locale hint (zh or en)")
}
