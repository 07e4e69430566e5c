package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mirthctl/mirthctl/mirth"
)

var (
	showGroups  bool
	showDetails bool
)

// channelsCmd represents the channels command
var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List channels with their deployed state and message counters",
	Long: `List all channels on the server, joined with their dashboard state,
message statistics and optionally channel group membership.`,
	RunE: runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)

	channelsCmd.Flags().BoolVar(&showGroups, "groups", false, "include channel group membership")
	channelsCmd.Flags().BoolVar(&showDetails, "details", false, "show channel IDs, descriptions and deployment info")
}

func runChannels(cmd *cobra.Command, args []string) error {
	overviews, err := operations.ChannelOverviews(cmd.Context(), showGroups)
	if err != nil {
		return fmt.Errorf("failed to assemble channel overviews: %w", err)
	}

	formatter := mirth.NewConsoleFormatter()
	fmt.Print(formatter.FormatChannelOverviews(overviews, mirth.FormatOptions{
		ShowDetails: showDetails || cfg.Safety.ShowDetails,
	}))

	return nil
}

// resolveChannel turns a --channel argument into a channel ID. It accepts
// either a channel UUID or an exact channel name.
func resolveChannel(ctx context.Context, ref string) (uuid.UUID, error) {
	if ref == "" {
		return uuid.Nil, fmt.Errorf("no channel specified")
	}

	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}

	channels, err := client.GetChannelsByName(ctx, ref)
	if err != nil {
		return uuid.Nil, err
	}
	switch len(channels) {
	case 0:
		return uuid.Nil, fmt.Errorf("no channel named %q", ref)
	case 1:
		return channels[0].ID, nil
	default:
		return uuid.Nil, fmt.Errorf("%d channels named %q, use the channel ID", len(channels), ref)
	}
}
