package mirth

import (
	"context"

	"github.com/blang/semver"
	"github.com/google/uuid"
)

// API defines the interface for Mirth Connect API operations
type API interface {
	// Session operations
	Login(ctx context.Context, username, password string) (*LoginStatus, error)
	Logout(ctx context.Context) error
	ServerVersion(ctx context.Context) (semver.Version, error)

	// Channel operations
	GetChannels(ctx context.Context) ([]Channel, error)
	GetChannelsByName(ctx context.Context, name string) ([]Channel, error)
	GetChannel(ctx context.Context, id uuid.UUID) (*Channel, error)
	GetChannelGroups(ctx context.Context) ([]ChannelGroup, error)
	GetChannelStatuses(ctx context.Context) ([]DashboardStatus, error)

	// Statistics operations
	GetAllStatistics(ctx context.Context) ([]ChannelStatistics, error)
	GetChannelStatistics(ctx context.Context, id uuid.UUID) (*ChannelStatistics, error)

	// Message operations
	GetMessages(ctx context.Context, channelID uuid.UUID, search MessageSearch) ([]Message, error)
	GetMessage(ctx context.Context, channelID uuid.UUID, messageID int64, includeContent bool) (*Message, error)
	PreviewMessage(ctx context.Context, channelID uuid.UUID, messageID int64) (*Message, error)
	SendMessage(ctx context.Context, channelID uuid.UUID, data string, opts SendOptions) (*Message, error)
	ReprocessMessage(ctx context.Context, channelID uuid.UUID, messageID int64, opts ReprocessOptions) (*Message, error)

	// Event operations
	GetEvents(ctx context.Context, search EventSearch) ([]Event, error)
	GetEvent(ctx context.Context, id int64) (*Event, error)
}

// Formatter defines the interface for formatting console output
type Formatter interface {
	FormatChannelOverviews(overviews []ChannelOverview, options FormatOptions) string
	FormatMessages(messages []Message, options FormatOptions) string
	FormatEvents(events []Event, options FormatOptions) string
}

// FormatOptions contains options for formatting output
type FormatOptions struct {
	ShowDetails bool
	ShowContent bool
}
