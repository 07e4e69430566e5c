package mirth

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/google/uuid"
)

// GetChannels retrieves all channels on the server.
func (c *Client) GetChannels(ctx context.Context) ([]Channel, error) {
	body, err := c.get(ctx, "/channels", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get channels: %w", err)
	}

	channels, err := decodeList[Channel](body, "channel")
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(channels)).Msg("Retrieved channels from Mirth")
	return channels, nil
}

// GetChannelsByName retrieves the channels whose name matches exactly. The
// channels endpoint has no name filter, so this filters client-side.
func (c *Client) GetChannelsByName(ctx context.Context, name string) ([]Channel, error) {
	channels, err := c.GetChannels(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Channel
	for _, ch := range channels {
		if ch.Name == name {
			matches = append(matches, ch)
		}
	}
	return matches, nil
}

// GetChannel retrieves a single channel by its ID.
func (c *Client) GetChannel(ctx context.Context, id uuid.UUID) (*Channel, error) {
	body, err := c.get(ctx, fmt.Sprintf("/channels/%s", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %s: %w", id, err)
	}

	var channel Channel
	if err := xml.Unmarshal(body, &channel); err != nil {
		return nil, fmt.Errorf("decode channel: %w", err)
	}
	return &channel, nil
}

// GetChannelGroups retrieves all channel groups.
func (c *Client) GetChannelGroups(ctx context.Context) ([]ChannelGroup, error) {
	body, err := c.get(ctx, "/channelgroups", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel groups: %w", err)
	}

	groups, err := decodeList[ChannelGroup](body, "channelGroup")
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(groups)).Msg("Retrieved channel groups from Mirth")
	return groups, nil
}

// GetChannelStatuses retrieves the dashboard status of every deployed
// channel.
func (c *Client) GetChannelStatuses(ctx context.Context) ([]DashboardStatus, error) {
	body, err := c.get(ctx, "/channels/statuses", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel statuses: %w", err)
	}

	statuses, err := decodeList[DashboardStatus](body, "dashboardStatus")
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(statuses)).Msg("Retrieved channel statuses from Mirth")
	return statuses, nil
}

// GetAllStatistics retrieves the message counters of every channel.
func (c *Client) GetAllStatistics(ctx context.Context) ([]ChannelStatistics, error) {
	body, err := c.get(ctx, "/channels/statistics", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel statistics: %w", err)
	}

	stats, err := decodeList[ChannelStatistics](body, "channelStatistics")
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(stats)).Msg("Retrieved channel statistics from Mirth")
	return stats, nil
}

// GetChannelStatistics retrieves the message counters of a single channel.
func (c *Client) GetChannelStatistics(ctx context.Context, id uuid.UUID) (*ChannelStatistics, error) {
	body, err := c.get(ctx, fmt.Sprintf("/channels/%s/statistics", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics for channel %s: %w", id, err)
	}

	var stats ChannelStatistics
	if err := xml.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("decode channel statistics: %w", err)
	}
	return &stats, nil
}

// ChannelAPI is a handle for operations scoped to one channel.
type ChannelAPI struct {
	client *Client
	id     uuid.UUID
}

// Channel returns a handle for the channel with the given ID. The ID is not
// validated against the server until the first call through the handle.
func (c *Client) Channel(id uuid.UUID) *ChannelAPI {
	return &ChannelAPI{client: c, id: id}
}

// ID returns the channel ID the handle is bound to.
func (ch *ChannelAPI) ID() uuid.UUID {
	return ch.id
}

// GetInfo retrieves the channel's metadata.
func (ch *ChannelAPI) GetInfo(ctx context.Context) (*Channel, error) {
	return ch.client.GetChannel(ctx, ch.id)
}

// GetStatistics retrieves the channel's message counters.
func (ch *ChannelAPI) GetStatistics(ctx context.Context) (*ChannelStatistics, error) {
	return ch.client.GetChannelStatistics(ctx, ch.id)
}

// GetMessages retrieves messages processed by the channel.
func (ch *ChannelAPI) GetMessages(ctx context.Context, search MessageSearch) ([]Message, error) {
	return ch.client.GetMessages(ctx, ch.id, search)
}

// GetMessage retrieves a single message by ID.
func (ch *ChannelAPI) GetMessage(ctx context.Context, messageID int64, includeContent bool) (*Message, error) {
	return ch.client.GetMessage(ctx, ch.id, messageID, includeContent)
}

// PreviewMessage retrieves a minimal, content-free representation of a
// message.
func (ch *ChannelAPI) PreviewMessage(ctx context.Context, messageID int64) (*Message, error) {
	return ch.client.PreviewMessage(ctx, ch.id, messageID)
}

// SendMessage posts raw data to the channel and returns the processed
// message.
func (ch *ChannelAPI) SendMessage(ctx context.Context, data string, opts SendOptions) (*Message, error) {
	return ch.client.SendMessage(ctx, ch.id, data, opts)
}

// ReprocessMessage replays a stored message through the channel.
func (ch *ChannelAPI) ReprocessMessage(ctx context.Context, messageID int64, opts ReprocessOptions) (*Message, error) {
	return ch.client.ReprocessMessage(ctx, ch.id, messageID, opts)
}
