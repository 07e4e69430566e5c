package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mirthctl/mirthctl/mirth"
)

var (
	channelRef string

	// list flags
	listLimit      int
	reprocessLimit int
	msgOffset      int
	msgStatuses    []string
	listContent    bool
	getContent     bool
	msgText        string
	msgMax         int

	// send flags
	sendData      string
	sendFile      string
	sendBinary    bool
	sendSourceMap []string
	noConfirm     bool

	// reprocess flags
	reprocessReplace    bool
	reprocessFilterDest bool
)

// messagesCmd represents the messages command
var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Inspect, send and reprocess channel messages",
}

func init() {
	rootCmd.AddCommand(messagesCmd)

	messagesCmd.PersistentFlags().StringVarP(&channelRef, "channel", "c", "", "channel ID or exact channel name (required)")
	messagesCmd.MarkPersistentFlagRequired("channel")

	messagesCmd.AddCommand(messagesListCmd)
	messagesListCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	messagesListCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
	messagesListCmd.Flags().IntVar(&listLimit, "limit", 20, "messages fetched per page")
	messagesListCmd.Flags().IntVar(&msgOffset, "offset", 0, "number of messages to skip")
	messagesListCmd.Flags().StringSliceVar(&msgStatuses, "status", nil, "filter on connector status (RECEIVED, SENT, ERROR, ...)")
	messagesListCmd.Flags().BoolVar(&listContent, "content", false, "include message content")
	messagesListCmd.Flags().StringVar(&msgText, "text", "", "server-side text search")
	messagesListCmd.Flags().IntVar(&msgMax, "max", 0, "stop after this many matches (0 = unlimited)")

	messagesCmd.AddCommand(messagesGetCmd)
	messagesGetCmd.Flags().BoolVar(&getContent, "content", true, "include message content")

	messagesCmd.AddCommand(messagesSendCmd)
	messagesSendCmd.Flags().StringVar(&sendData, "data", "", "message payload")
	messagesSendCmd.Flags().StringVar(&sendFile, "file", "", "read the message payload from a file")
	messagesSendCmd.Flags().BoolVar(&sendBinary, "binary", false, "payload is base64-encoded binary data")
	messagesSendCmd.Flags().StringSliceVar(&sendSourceMap, "source", nil, "source map entries as key=value")
	messagesSendCmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "skip confirmation prompt")

	messagesCmd.AddCommand(messagesReprocessCmd)
	messagesReprocessCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "reprocess messages matching this filter expression")
	messagesReprocessCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
	messagesReprocessCmd.Flags().IntVar(&reprocessLimit, "limit", 100, "messages fetched per page when selecting by filter")
	messagesReprocessCmd.Flags().StringSliceVar(&msgStatuses, "status", nil, "restrict filter selection to these connector statuses")
	messagesReprocessCmd.Flags().IntVar(&msgMax, "max", 0, "stop after this many matches (0 = unlimited)")
	messagesReprocessCmd.Flags().BoolVar(&reprocessReplace, "replace", false, "overwrite the original messages instead of creating new ones")
	messagesReprocessCmd.Flags().BoolVar(&reprocessFilterDest, "filter-destinations", false, "only reprocess through the originally reached destinations")
	messagesReprocessCmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "skip confirmation prompt")
}

// messagesListCmd represents the messages list command
var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List messages processed by a channel",
	Long: `List messages processed by a channel. Server-side criteria (status,
text search, ID range) are applied first, then the optional filter
expression runs against each message.`,
	RunE: runMessagesList,
}

func runMessagesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	channelID, err := resolveChannel(ctx, channelRef)
	if err != nil {
		return err
	}

	match, err := messageMatcher()
	if err != nil {
		return err
	}

	search := mirth.MessageSearch{
		Offset:         msgOffset,
		IncludeContent: listContent,
		Statuses:       msgStatuses,
		TextSearch:     msgText,
	}

	messages, err := operations.SearchMessages(ctx, channelID, search, match, mirth.SearchOptions{
		PageSize:   listLimit,
		MaxResults: msgMax,
	})
	if err != nil {
		return err
	}

	formatter := mirth.NewConsoleFormatter()
	fmt.Print(formatter.FormatMessages(messages, mirth.FormatOptions{
		ShowDetails: cfg.Safety.ShowDetails,
		ShowContent: listContent,
	}))

	return nil
}

// messagesGetCmd represents the messages get command
var messagesGetCmd = &cobra.Command{
	Use:   "get <message-id>",
	Short: "Show a single message",
	Args:  cobra.ExactArgs(1),
	RunE:  runMessagesGet,
}

func runMessagesGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	channelID, err := resolveChannel(ctx, channelRef)
	if err != nil {
		return err
	}

	messageID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message ID %q", args[0])
	}

	message, err := client.GetMessage(ctx, channelID, messageID, getContent)
	if err != nil {
		return err
	}

	formatter := mirth.NewConsoleFormatter()
	fmt.Print(formatter.FormatMessages([]mirth.Message{*message}, mirth.FormatOptions{
		ShowDetails: true,
		ShowContent: getContent,
	}))

	return nil
}

// messagesSendCmd represents the messages send command
var messagesSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message through a channel",
	Long: `Post raw data to a channel and report the processing result per
connector. The payload comes from --data or --file.`,
	RunE: runMessagesSend,
}

func runMessagesSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	channelID, err := resolveChannel(ctx, channelRef)
	if err != nil {
		return err
	}

	data, err := sendPayload()
	if err != nil {
		return err
	}

	sourceMap, err := parseSourceMap(sendSourceMap)
	if err != nil {
		return err
	}

	if cfg.Safety.DryRun {
		logger.Info().Msg("DRY RUN MODE - No message will be sent")
		fmt.Printf("Would send %d bytes to channel %s\n", len(data), channelID)
		return nil
	}

	if cfg.Safety.ConfirmSend && !noConfirm {
		if !confirm(fmt.Sprintf("Send %d bytes to channel %s?", len(data), channelID)) {
			logger.Info().Msg("Send cancelled by user")
			return nil
		}
	}

	message, err := client.SendMessage(ctx, channelID, data, mirth.SendOptions{
		Binary:    sendBinary,
		SourceMap: sourceMap,
	})

	var postErr *mirth.PostError
	if errors.As(err, &postErr) {
		fmt.Printf("✗ Message %d was accepted but %d connector(s) failed:\n", postErr.MessageID, len(postErr.Failures))
		for _, failure := range postErr.Failures {
			fmt.Printf("  - %s\n", failure)
		}
		return err
	}
	if err != nil {
		return err
	}

	if message == nil {
		// Servers older than 3.9.0 accept the message without reporting
		// its ID.
		fmt.Println("✓ Message accepted (server does not report message IDs)")
		return nil
	}

	fmt.Printf("✓ Message %d processed\n", message.MessageID)

	formatter := mirth.NewConsoleFormatter()
	fmt.Print(formatter.FormatMessages([]mirth.Message{*message}, mirth.FormatOptions{
		ShowDetails: cfg.Safety.ShowDetails,
	}))

	return nil
}

// messagesReprocessCmd represents the messages reprocess command
var messagesReprocessCmd = &cobra.Command{
	Use:   "reprocess [message-id...]",
	Short: "Reprocess stored messages through their channel",
	Long: `Replay stored messages through their channel. Messages are selected
either by explicit IDs or by a filter expression over the channel's
recent messages.`,
	RunE: runMessagesReprocess,
}

func runMessagesReprocess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	channelID, err := resolveChannel(ctx, channelRef)
	if err != nil {
		return err
	}

	messageIDs, err := reprocessTargets(cmd, args, channelID)
	if err != nil {
		return err
	}

	opts := mirth.ReprocessRunOptions{
		ReprocessOptions: mirth.ReprocessOptions{
			Replace:            reprocessReplace,
			FilterDestinations: reprocessFilterDest,
		},
		DryRun:  cfg.Safety.DryRun,
		Confirm: cfg.Safety.ConfirmSend && !noConfirm,
	}

	return operations.ReprocessMessages(ctx, channelID, messageIDs, opts)
}

// reprocessTargets resolves the message IDs to reprocess, either from the
// command arguments or by running the filter expression.
func reprocessTargets(cmd *cobra.Command, args []string, channelID uuid.UUID) ([]int64, error) {
	if len(args) > 0 {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid message ID %q", arg)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	expression, err := getFilterExpression()
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return nil, fmt.Errorf("no message IDs given and no filter expression specified")
	}

	match, err := messageMatcher()
	if err != nil {
		return nil, err
	}

	messages, err := operations.SearchMessages(cmd.Context(), channelID, mirth.MessageSearch{
		Statuses: msgStatuses,
	}, match, mirth.SearchOptions{
		PageSize:   reprocessLimit,
		MaxResults: msgMax,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.MessageID)
	}
	return ids, nil
}

// messageMatcher compiles the configured filter expression into a match
// function. A nil matcher means no client-side filtering.
func messageMatcher() (func(mirth.Message) bool, error) {
	expression, err := getFilterExpression()
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return nil, nil
	}

	filt, err := compiler.CompileMessage(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	logger.Info().Str("filter", expression).Msg("Searching messages")
	return filt.Evaluate, nil
}

// sendPayload reads the message payload from --data or --file.
func sendPayload() (string, error) {
	switch {
	case sendData != "" && sendFile != "":
		return "", fmt.Errorf("--data and --file are mutually exclusive")
	case sendData != "":
		return sendData, nil
	case sendFile != "":
		raw, err := os.ReadFile(sendFile)
		if err != nil {
			return "", fmt.Errorf("failed to read payload file: %w", err)
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("no payload: use --data or --file")
	}
}

// parseSourceMap parses key=value pairs into a source map.
func parseSourceMap(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	sourceMap := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid source map entry %q, want key=value", pair)
		}
		sourceMap[key] = value
	}
	return sourceMap, nil
}
