package watchcli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roundtable-labs/roundsync/internal/meetingsync"
)

var sendCmd = &cobra.Command{
	Use:   "send <meeting-id> <message>",
	Short: "Inject a user message into a meeting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		meetingID, content := args[0], args[1]
		client := newClient()

		saved := make(chan struct{}, 1)
		ch := meetingsync.NewStreamChannel(client, meetingID, meetingsync.StreamCallbacks{
			OnMessage: func(msg meetingsync.Message) {
				if msg.Saved && msg.Content == content {
					select {
					case saved <- struct{}{}:
					default:
					}
				}
			},
		})
		defer ch.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ch.Connect(ctx); err != nil {
			exitWithError(cmd, err)
			return
		}
		ch.SendUserMessage(content)

		select {
		case <-saved:
			fmt.Fprintln(cmd.OutOrStdout(), "Message saved.")
		case <-ctx.Done():
			exitWithError(cmd, fmt.Errorf("timed out waiting for save confirmation"))
		}
	},
}
