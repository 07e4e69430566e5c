package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mirthctl/mirthctl/mirth"
)

var (
	eventLevel   string
	eventOutcome string
	eventUser    int
	eventName    string
	eventLimit   int
	eventOffset  int
	eventMax     int
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the server audit log",
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.AddCommand(eventsListCmd)
	eventsListCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	eventsListCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
	eventsListCmd.Flags().StringVar(&eventLevel, "level", "", "filter on severity (INFORMATION, WARNING, ERROR)")
	eventsListCmd.Flags().StringVar(&eventOutcome, "outcome", "", "filter on outcome (SUCCESS, FAILURE)")
	eventsListCmd.Flags().IntVar(&eventUser, "user", -1, "filter on the acting user ID")
	eventsListCmd.Flags().StringVar(&eventName, "name", "", "filter on the event name")
	eventsListCmd.Flags().IntVar(&eventLimit, "limit", 20, "events fetched per page")
	eventsListCmd.Flags().IntVar(&eventOffset, "offset", 0, "number of events to skip")
	eventsListCmd.Flags().IntVar(&eventMax, "max", 0, "stop after this many matches (0 = unlimited)")

	eventsCmd.AddCommand(eventsGetCmd)
}

// eventsListCmd represents the events list command
var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List server events",
	Long: `List server audit events. The level, outcome, user and name filters
are applied server-side, the optional filter expression runs against
each returned event.`,
	RunE: runEventsList,
}

func runEventsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	match, err := eventMatcher()
	if err != nil {
		return err
	}

	search := mirth.EventSearch{
		Offset:  eventOffset,
		Level:   strings.ToUpper(eventLevel),
		Outcome: strings.ToUpper(eventOutcome),
		Name:    eventName,
	}
	if eventUser >= 0 {
		search.UserID = &eventUser
	}

	events, err := operations.SearchEvents(ctx, search, match, mirth.SearchOptions{
		PageSize:   eventLimit,
		MaxResults: eventMax,
	})
	if err != nil {
		return err
	}

	formatter := mirth.NewConsoleFormatter()
	fmt.Print(formatter.FormatEvents(events, mirth.FormatOptions{
		ShowDetails: cfg.Safety.ShowDetails,
	}))

	return nil
}

// eventsGetCmd represents the events get command
var eventsGetCmd = &cobra.Command{
	Use:   "get <event-id>",
	Short: "Show a single server event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsGet,
}

func runEventsGet(cmd *cobra.Command, args []string) error {
	eventID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid event ID %q", args[0])
	}

	event, err := client.GetEvent(cmd.Context(), eventID)
	if err != nil {
		return err
	}

	formatter := mirth.NewConsoleFormatter()
	fmt.Print(formatter.FormatEvents([]mirth.Event{*event}, mirth.FormatOptions{
		ShowDetails: true,
	}))

	return nil
}

// eventMatcher compiles the configured filter expression into a match
// function. A nil matcher means no client-side filtering.
func eventMatcher() (func(mirth.Event) bool, error) {
	expression, err := getFilterExpression()
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return nil, nil
	}

	filt, err := compiler.CompileEvent(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	logger.Info().Str("filter", expression).Msg("Searching events")
	return filt.Evaluate, nil
}
