package watchcli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roundtable-labs/roundsync/config"
	"github.com/roundtable-labs/roundsync/internal/meetingsync"
)

var watchCmd = &cobra.Command{
	Use:   "watch <meeting-id>",
	Short: "Follow a live meeting",
	Long: `watch follows a meeting on two channels at once: the websocket event
stream for per-message updates and the status endpoint for coarse
progress. Completion can be reported by either channel; whichever
arrives first wins.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		meetingID := args[0]
		client := newClient()
		out := cmd.OutOrStdout()

		var once sync.Once
		done := make(chan struct{})
		finish := func(msg string) {
			once.Do(func() {
				fmt.Fprintln(out, msg)
				close(done)
			})
		}
		complete := func() { finish("Meeting complete.") }

		ch := meetingsync.NewStreamChannel(client, meetingID, meetingsync.StreamCallbacks{
			OnMessage: func(msg meetingsync.Message) {
				if msg.Saved {
					return
				}
				fmt.Fprintf(out, "[round %d] %s (%s): %s\n", msg.Round, msg.AgentName, msg.Role, msg.Content)
			},
			OnRoundComplete: func(round, total int) {
				fmt.Fprintf(out, "-- round %d/%d complete --\n", round, total)
			},
			OnMeetingComplete: complete,
			OnError: func(detail string) {
				fmt.Fprintf(os.Stderr, "stream error: %s\n", detail)
			},
		})
		defer ch.Close()

		poller := meetingsync.NewStatusPoller(client, meetingID, meetingsync.PollerOptions{
			Interval: config.Load().PollInterval,
			OnStatusChange: func(snap meetingsync.StatusSnapshot) {
				fmt.Fprintf(out, "status: %s (round %d/%d, %d messages)\n",
					snap.Status, snap.CurrentRound, snap.MaxRounds, snap.MessageCount)
				switch {
				case snap.Status == meetingsync.StateCompleted:
					finish("Meeting complete.")
				case snap.Status == meetingsync.StateFailed:
					finish("Meeting failed.")
				case snap.Settled():
					// The poller stops on a settled meeting but the
					// stream stays open for future rounds.
					fmt.Fprintln(out, "meeting idle; still watching the event stream")
				}
			},
			OnComplete: complete,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := ch.Connect(ctx)
		cancel()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		poller.Enable()
		defer poller.Disable()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case <-done:
		case <-sig:
			fmt.Fprintln(out, "Interrupted.")
		}
	},
}
