package watchcli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var meetingsCmd = &cobra.Command{
	Use:   "meetings",
	Short: "Manage meetings",
}

var meetingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List meetings",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		meetings, err := client.ListMeetings(context.Background())
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if handled, err := writeOutput(meetings); handled {
			if err != nil {
				exitWithError(cmd, err)
			}
			return
		}

		tw := newTable()
		fmt.Fprintf(tw, "ID\tTopic\tStatus\tRound\tUpdated\n")
		for _, m := range meetings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
				m.ID, m.Topic, m.Status, m.CurrentRound, m.MaxRounds, relativeTime(m.UpdatedAt))
		}
		flushTable(tw)
	},
}

var meetingsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a meeting",
	Run: func(cmd *cobra.Command, args []string) {
		topic, _ := cmd.Flags().GetString("topic")
		rounds, _ := cmd.Flags().GetInt("rounds")

		client := newClient()
		m, err := client.CreateMeeting(context.Background(), topic, rounds)
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if handled, err := writeOutput(m); handled {
			if err != nil {
				exitWithError(cmd, err)
			}
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created meeting %s (%q, %d rounds)\n", m.ID, m.Topic, m.MaxRounds)
	},
}

var meetingsMessagesCmd = &cobra.Command{
	Use:   "messages <meeting-id>",
	Short: "Show a meeting's transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		msgs, err := client.MeetingMessages(context.Background(), args[0])
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if handled, err := writeOutput(msgs); handled {
			if err != nil {
				exitWithError(cmd, err)
			}
			return
		}

		tw := newTable()
		fmt.Fprintf(tw, "Round\tSpeaker\tContent\n")
		for _, msg := range msgs {
			speaker := msg.AgentName
			if speaker == "" {
				speaker = msg.Role
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", msg.Round, speaker, msg.Content)
		}
		flushTable(tw)
	},
}

func init() {
	meetingsCreateCmd.Flags().String("topic", "", "Meeting topic")
	meetingsCreateCmd.Flags().Int("rounds", 1, "Maximum number of rounds")

	meetingsCmd.AddCommand(meetingsListCmd)
	meetingsCmd.AddCommand(meetingsCreateCmd)
	meetingsCmd.AddCommand(meetingsMessagesCmd)
}
