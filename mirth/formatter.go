package mirth

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const contentPreviewLimit = 500

// ConsoleFormatter provides console output formatting for channels,
// messages and events
type ConsoleFormatter struct{}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{}
}

// FormatChannelOverviews formats channel overviews for console display
func (f *ConsoleFormatter) FormatChannelOverviews(overviews []ChannelOverview, options FormatOptions) string {
	if len(overviews) == 0 {
		return "No channels found"
	}

	var sb strings.Builder

	// Header
	sb.WriteString("\nChannel")
	if len(overviews) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%d):\n\n", len(overviews))

	for i, overview := range overviews {
		isLast := i == len(overviews)-1
		f.formatChannelOverview(&sb, overview, isLast, options)

		if !isLast {
			sb.WriteString("│\n")
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// formatChannelOverview formats a single channel entry
func (f *ConsoleFormatter) formatChannelOverview(sb *strings.Builder, overview ChannelOverview, isLast bool, options FormatOptions) {
	prefix := "├"
	if isLast {
		prefix = "╰"
	}

	state := "UNDEPLOYED"
	if overview.Status != nil {
		state = overview.Status.State
	}
	fmt.Fprintf(sb, "%s── %s [%s]\n", prefix, overview.Channel.Name, state)

	indent := "│   "
	if isLast {
		indent = "    "
	}

	if options.ShowDetails {
		fmt.Fprintf(sb, "%sID: %s (revision %d)\n", indent, overview.Channel.ID, overview.Channel.Revision)
		if overview.Channel.Description != "" {
			fmt.Fprintf(sb, "%sDescription: %s\n", indent, overview.Channel.Description)
		}
	}

	// Group membership
	if len(overview.Groups) > 0 {
		fmt.Fprintf(sb, "%sGroups: %s\n", indent, strings.Join(overview.Groups, ", "))
	}

	// Message counters
	if overview.Statistics != nil {
		s := overview.Statistics
		counters := fmt.Sprintf("Received: %d | Filtered: %d | Sent: %d | Errored: %d",
			s.Received, s.Filtered, s.Sent, s.Error)
		if s.Queued > 0 {
			counters += fmt.Sprintf(" | Queued: %d", s.Queued)
		}
		fmt.Fprintf(sb, "%s%s\n", indent, counters)
	}

	// Deployment info
	if options.ShowDetails && overview.Status != nil {
		if !overview.Status.DeployedDate.IsZero() {
			fmt.Fprintf(sb, "%sDeployed: %s", indent, overview.Status.DeployedDate.Format("2006-01-02 15:04:05"))
			if overview.Status.DeployedRevisionDelta > 0 {
				fmt.Fprintf(sb, " (%d revisions behind)", overview.Status.DeployedRevisionDelta)
			}
			sb.WriteString("\n")
		}
	}
}

// FormatMessages formats messages for console display
func (f *ConsoleFormatter) FormatMessages(messages []Message, options FormatOptions) string {
	if len(messages) == 0 {
		return "No messages found"
	}

	var sb strings.Builder

	// Header
	sb.WriteString("\nMessage")
	if len(messages) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%d):\n\n", len(messages))

	for i, message := range messages {
		isLast := i == len(messages)-1
		f.formatMessage(&sb, message, isLast, options)

		if !isLast {
			sb.WriteString("│\n")
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// formatMessage formats a single message entry
func (f *ConsoleFormatter) formatMessage(sb *strings.Builder, message Message, isLast bool, options FormatOptions) {
	prefix := "├"
	if isLast {
		prefix = "╰"
	}

	failures := message.FailedConnectors()
	summary := "OK"
	if len(failures) > 0 {
		summary = "ERROR"
	} else if !message.Processed {
		summary = "PROCESSING"
	}
	fmt.Fprintf(sb, "%s── Message %d [%s]\n", prefix, message.MessageID, summary)

	indent := "│   "
	if isLast {
		indent = "    "
	}

	if !message.ReceivedDate.IsZero() {
		fmt.Fprintf(sb, "%sReceived: %s\n", indent, message.ReceivedDate.Format("2006-01-02 15:04:05"))
	}

	// Connector breakdown, source first
	ids := make([]int, 0, len(message.ConnectorMessages))
	for id := range message.ConnectorMessages {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		cm := message.ConnectorMessages[id]
		fmt.Fprintf(sb, "%s%s: %s", indent, cm.ConnectorName, cm.Status)
		if cm.SendAttempts > 1 {
			fmt.Fprintf(sb, " (%d attempts)", cm.SendAttempts)
		}
		sb.WriteString("\n")

		if options.ShowDetails && cm.Status == StatusError {
			fmt.Fprintf(sb, "%s  - %s\n", indent, cm.FailureReason())
		}
	}

	// Raw content from the source connector
	if options.ShowContent {
		if source, ok := message.ConnectorMessages[0]; ok && source.Raw != nil && source.Raw.Content != "" {
			fmt.Fprintf(sb, "%sContent:\n", indent)
			for _, line := range strings.Split(truncateContent(source.Raw.Content), "\n") {
				fmt.Fprintf(sb, "%s  %s\n", indent, line)
			}
		}
	}
}

// FormatEvents formats server events for console display
func (f *ConsoleFormatter) FormatEvents(events []Event, options FormatOptions) string {
	if len(events) == 0 {
		return "No events found"
	}

	var sb strings.Builder

	// Header
	sb.WriteString("\nEvent")
	if len(events) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%d):\n\n", len(events))

	for i, event := range events {
		isLast := i == len(events)-1
		prefix := "├"
		if isLast {
			prefix = "╰"
		}

		fmt.Fprintf(&sb, "%s── [%s] %s\n", prefix, event.Level, event.Name)

		indent := "│   "
		if isLast {
			indent = "    "
		}

		var infoParts []string
		if !event.DateTime.IsZero() {
			infoParts = append(infoParts, event.DateTime.Format("2006-01-02 15:04:05"))
		}
		if event.Outcome != "" {
			infoParts = append(infoParts, fmt.Sprintf("Outcome: %s", event.Outcome))
		}
		if event.IPAddress != "" {
			infoParts = append(infoParts, fmt.Sprintf("From: %s", event.IPAddress))
		}
		if len(infoParts) > 0 {
			fmt.Fprintf(&sb, "%s%s\n", indent, strings.Join(infoParts, " | "))
		}

		// Attributes
		if options.ShowDetails && len(event.Attributes) > 0 {
			keys := make([]string, 0, len(event.Attributes))
			for key := range event.Attributes {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			fmt.Fprintf(&sb, "%sAttributes:\n", indent)
			for _, key := range keys {
				fmt.Fprintf(&sb, "%s  - %s: %s\n", indent, key, event.Attributes[key])
			}
		}

		if !isLast {
			sb.WriteString("│\n")
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// truncateContent limits message content to a displayable preview. The cut
// point backs up to a rune boundary so multi-byte characters are never
// split.
func truncateContent(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= contentPreviewLimit {
		return content
	}
	cut := contentPreviewLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + fmt.Sprintf("... (%d more bytes)", len(content)-cut)
}
