// Package watchcli implements the roundsync command line client.
package watchcli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roundtable-labs/roundsync/config"
	"github.com/roundtable-labs/roundsync/internal/apiclient"
)

var (
	overrideURL   string
	overrideToken string
	outputFormat  string
)

// Execute runs the CLI.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "roundsync",
	Short: "Follow and steer panel meetings",
	Long: `roundsync is the command line client for the roundsync meeting server.
It can list meetings, inject user messages, kick off discussion rounds,
and follow a live meeting over its event stream.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&overrideURL, "server", "", "Override meeting server URL")
	rootCmd.PersistentFlags().StringVar(&overrideToken, "token", "", "Override API token")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(meetingsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(watchCmd)
}

func newClient() *apiclient.Client {
	cfg := config.Load()
	baseURL := cfg.APIBaseURL
	if overrideURL != "" {
		baseURL = overrideURL
	}
	token := cfg.APIToken
	if overrideToken != "" {
		token = overrideToken
	}
	return &apiclient.Client{
		BaseURL: baseURL,
		Token:   token,
		Timeout: 15 * time.Second,
	}
}

func writeOutput(data interface{}) (handled bool, err error) {
	switch strings.ToLower(outputFormat) {
	case "json":
		return true, printJSON(data)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unsupported output format %q", outputFormat)
	}
}

func exitWithError(cmd *cobra.Command, err error) {
	cmd.SilenceUsage = true
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
