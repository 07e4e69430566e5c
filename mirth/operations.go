package mirth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SearchOptions contains options for paging client-side searches
type SearchOptions struct {
	// PageSize is the number of records fetched per request.
	PageSize int
	// MaxResults stops the search after this many matches. Zero means
	// unlimited.
	MaxResults int
}

// ReprocessRunOptions contains options for batch reprocessing
type ReprocessRunOptions struct {
	ReprocessOptions
	DryRun  bool
	Confirm bool
}

// Operations handles channel overviews, message search and batch operations
// on top of the raw API client.
type Operations struct {
	api       API
	logger    zerolog.Logger
	formatter Formatter
}

// NewOperations creates a new Operations instance. Any API implementation
// works, which keeps the orchestration testable without a server.
func NewOperations(api API, logger zerolog.Logger) *Operations {
	return &Operations{
		api:       api,
		logger:    logger,
		formatter: NewConsoleFormatter(),
	}
}

// ChannelOverview joins a channel's metadata with its deployed state,
// message counters and group membership.
type ChannelOverview struct {
	Channel    Channel
	Statistics *ChannelStatistics
	Status     *DashboardStatus
	Groups     []string
}

// Deployed reports whether the channel currently appears on the dashboard.
func (o ChannelOverview) Deployed() bool {
	return o.Status != nil
}

// ChannelOverviews fetches channels, statistics, dashboard statuses and
// optionally group membership concurrently and joins them by channel ID.
func (o *Operations) ChannelOverviews(ctx context.Context, includeGroups bool) ([]ChannelOverview, error) {
	var (
		channels []Channel
		stats    []ChannelStatistics
		statuses []DashboardStatus
		groups   []ChannelGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		channels, err = o.api.GetChannels(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = o.api.GetAllStatistics(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		statuses, err = o.api.GetChannelStatuses(gctx)
		return err
	})
	if includeGroups {
		g.Go(func() error {
			var err error
			groups, err = o.api.GetChannelGroups(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statsByChannel := make(map[uuid.UUID]*ChannelStatistics, len(stats))
	for i := range stats {
		statsByChannel[stats[i].ChannelID] = &stats[i]
	}
	statusByChannel := make(map[uuid.UUID]*DashboardStatus, len(statuses))
	for i := range statuses {
		statusByChannel[statuses[i].ChannelID] = &statuses[i]
	}
	groupsByChannel := make(map[uuid.UUID][]string)
	for _, grp := range groups {
		for _, ref := range grp.Channels {
			groupsByChannel[ref.ID] = append(groupsByChannel[ref.ID], grp.Name)
		}
	}

	overviews := make([]ChannelOverview, 0, len(channels))
	for _, ch := range channels {
		overviews = append(overviews, ChannelOverview{
			Channel:    ch,
			Statistics: statsByChannel[ch.ID],
			Status:     statusByChannel[ch.ID],
			Groups:     groupsByChannel[ch.ID],
		})
	}

	sort.Slice(overviews, func(i, j int) bool {
		return strings.ToLower(overviews[i].Channel.Name) < strings.ToLower(overviews[j].Channel.Name)
	})

	o.logger.Debug().Int("count", len(overviews)).Msg("Assembled channel overviews")
	return overviews, nil
}

// SearchMessages pages through a channel's messages and returns those
// matching the filter. Server-side criteria in search apply before the
// match function runs. A nil match accepts everything.
func (o *Operations) SearchMessages(ctx context.Context, channelID uuid.UUID, search MessageSearch, match func(Message) bool, opts SearchOptions) ([]Message, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var results []Message
	offset := search.Offset
	for {
		page := search
		page.Limit = pageSize
		page.Offset = offset

		messages, err := o.api.GetMessages(ctx, channelID, page)
		if err != nil {
			return nil, err
		}

		for _, msg := range messages {
			if match != nil && !match(msg) {
				continue
			}
			results = append(results, msg)
			if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
				o.logger.Info().Msgf("Found %d messages matching filter", len(results))
				return results, nil
			}
		}

		if len(messages) < pageSize {
			break
		}
		offset += pageSize
	}

	o.logger.Info().Msgf("Found %d messages matching filter", len(results))
	return results, nil
}

// SearchEvents pages through server events and returns those matching the
// filter. A nil match accepts everything.
func (o *Operations) SearchEvents(ctx context.Context, search EventSearch, match func(Event) bool, opts SearchOptions) ([]Event, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var results []Event
	offset := search.Offset
	for {
		page := search
		page.Limit = pageSize
		page.Offset = offset

		events, err := o.api.GetEvents(ctx, page)
		if err != nil {
			return nil, err
		}

		for _, ev := range events {
			if match != nil && !match(ev) {
				continue
			}
			results = append(results, ev)
			if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
				o.logger.Info().Msgf("Found %d events matching filter", len(results))
				return results, nil
			}
		}

		if len(events) < pageSize {
			break
		}
		offset += pageSize
	}

	o.logger.Info().Msgf("Found %d events matching filter", len(results))
	return results, nil
}

// ReprocessMessages reprocesses the given messages, honoring dry-run and
// confirmation settings.
func (o *Operations) ReprocessMessages(ctx context.Context, channelID uuid.UUID, messageIDs []int64, opts ReprocessRunOptions) error {
	if len(messageIDs) == 0 {
		o.logger.Info().Msg("No messages to reprocess")
		return nil
	}

	if opts.DryRun {
		o.logger.Info().Msg("DRY RUN MODE - No messages will be reprocessed")
		fmt.Print(formatMessageIDs(channelID, messageIDs))
		return nil
	}

	if opts.Confirm {
		fmt.Print(formatMessageIDs(channelID, messageIDs))
		if !o.confirmReprocess(len(messageIDs)) {
			o.logger.Info().Msg("Reprocessing cancelled by user")
			return nil
		}
	}

	result := o.BatchReprocess(ctx, channelID, messageIDs, opts.ReprocessOptions)

	o.logger.Info().
		Int("reprocessed", len(result.Successful)).
		Int("failed", len(result.Failed)).
		Msg("Reprocessing complete")

	for _, failure := range result.Failed {
		o.logger.Error().
			Err(failure.Err).
			Int64("message_id", failure.MessageID).
			Msg("Failed to reprocess message")
	}

	if len(result.Failed) > 0 {
		return fmt.Errorf("failed to reprocess %d messages", len(result.Failed))
	}
	return nil
}

// confirmReprocess prompts the user for confirmation
func (o *Operations) confirmReprocess(count int) bool {
	fmt.Printf("\nAre you sure you want to reprocess %d message(s)? [y/N]: ", count)

	var response string
	fmt.Scanln(&response)

	return strings.ToLower(strings.TrimSpace(response)) == "y"
}

func formatMessageIDs(channelID uuid.UUID, messageIDs []int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nMessages queued for reprocessing on channel %s:\n", channelID)
	for _, id := range messageIDs {
		fmt.Fprintf(&sb, "  • %d\n", id)
	}
	return sb.String()
}
