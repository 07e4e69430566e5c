package mirth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blang/semver"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMirthAPI implements API for testing
type mockMirthAPI struct {
	channels []Channel
	groups   []ChannelGroup
	statuses []DashboardStatus
	stats    []ChannelStatistics
	messages []Message
	events   []Event

	fullMessages  map[int64]Message
	getMessageErr map[int64]error
	reprocessErr  map[int64]error

	// Track calls for verification
	mu               sync.Mutex
	getMessagesCalls int
	reprocessed      []int64
}

func (m *mockMirthAPI) Login(ctx context.Context, username, password string) (*LoginStatus, error) {
	return &LoginStatus{Status: LoginSuccess}, nil
}

func (m *mockMirthAPI) Logout(ctx context.Context) error {
	return nil
}

func (m *mockMirthAPI) ServerVersion(ctx context.Context) (semver.Version, error) {
	return semver.MustParse("4.4.0"), nil
}

func (m *mockMirthAPI) GetChannels(ctx context.Context) ([]Channel, error) {
	return m.channels, nil
}

func (m *mockMirthAPI) GetChannelsByName(ctx context.Context, name string) ([]Channel, error) {
	var out []Channel
	for _, ch := range m.channels {
		if ch.Name == name {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *mockMirthAPI) GetChannel(ctx context.Context, id uuid.UUID) (*Channel, error) {
	for i := range m.channels {
		if m.channels[i].ID == id {
			return &m.channels[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockMirthAPI) GetChannelGroups(ctx context.Context) ([]ChannelGroup, error) {
	return m.groups, nil
}

func (m *mockMirthAPI) GetChannelStatuses(ctx context.Context) ([]DashboardStatus, error) {
	return m.statuses, nil
}

func (m *mockMirthAPI) GetAllStatistics(ctx context.Context) ([]ChannelStatistics, error) {
	return m.stats, nil
}

func (m *mockMirthAPI) GetChannelStatistics(ctx context.Context, id uuid.UUID) (*ChannelStatistics, error) {
	for i := range m.stats {
		if m.stats[i].ChannelID == id {
			return &m.stats[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockMirthAPI) GetMessages(ctx context.Context, channelID uuid.UUID, search MessageSearch) ([]Message, error) {
	m.mu.Lock()
	m.getMessagesCalls++
	m.mu.Unlock()

	start := search.Offset
	if start >= len(m.messages) {
		return nil, nil
	}
	end := min(start+search.Limit, len(m.messages))
	return m.messages[start:end], nil
}

func (m *mockMirthAPI) GetMessage(ctx context.Context, channelID uuid.UUID, messageID int64, includeContent bool) (*Message, error) {
	if err := m.getMessageErr[messageID]; err != nil {
		return nil, err
	}
	if full, ok := m.fullMessages[messageID]; ok {
		return &full, nil
	}
	for i := range m.messages {
		if m.messages[i].MessageID == messageID {
			msg := m.messages[i]
			return &msg, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockMirthAPI) PreviewMessage(ctx context.Context, channelID uuid.UUID, messageID int64) (*Message, error) {
	return m.GetMessage(ctx, channelID, messageID, false)
}

func (m *mockMirthAPI) SendMessage(ctx context.Context, channelID uuid.UUID, data string, opts SendOptions) (*Message, error) {
	return nil, nil
}

func (m *mockMirthAPI) ReprocessMessage(ctx context.Context, channelID uuid.UUID, messageID int64, opts ReprocessOptions) (*Message, error) {
	m.mu.Lock()
	m.reprocessed = append(m.reprocessed, messageID)
	m.mu.Unlock()

	if err := m.reprocessErr[messageID]; err != nil {
		return nil, err
	}
	return &Message{MessageID: messageID}, nil
}

func (m *mockMirthAPI) GetEvents(ctx context.Context, search EventSearch) ([]Event, error) {
	start := search.Offset
	if start >= len(m.events) {
		return nil, nil
	}
	end := min(start+search.Limit, len(m.events))
	return m.events[start:end], nil
}

func (m *mockMirthAPI) GetEvent(ctx context.Context, id int64) (*Event, error) {
	for i := range m.events {
		if m.events[i].ID == id {
			return &m.events[i], nil
		}
	}
	return nil, ErrNotFound
}

// testMessages builds n processed messages, the listed IDs with one errored
// destination connector.
func testMessages(n int, errored ...int64) []Message {
	failed := make(map[int64]bool, len(errored))
	for _, id := range errored {
		failed[id] = true
	}

	messages := make([]Message, 0, n)
	for i := 1; i <= n; i++ {
		msg := Message{
			MessageID: int64(i),
			Processed: true,
			ConnectorMessages: ConnectorMessageMap{
				0: {MetaDataID: 0, ConnectorName: "Source", Status: StatusTransformed},
			},
		}
		if failed[int64(i)] {
			msg.ConnectorMessages[1] = ConnectorMessage{
				MetaDataID:    1,
				ConnectorName: "Destination 1",
				Status:        StatusError,
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

func TestOperationsChannelOverviews(t *testing.T) {
	alphaID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	betaID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	mockAPI := &mockMirthAPI{
		channels: []Channel{
			{ID: betaID, Name: "Beta Outbound"},
			{ID: alphaID, Name: "Alpha Inbound"},
		},
		stats: []ChannelStatistics{
			{ChannelID: alphaID, Received: 10, Sent: 9, Error: 1},
		},
		statuses: []DashboardStatus{
			{ChannelID: alphaID, Name: "Alpha Inbound", State: ChannelStarted},
		},
		groups: []ChannelGroup{
			{Name: "Production", Channels: []ChannelRef{{ID: alphaID}}},
		},
	}

	ops := NewOperations(mockAPI, zerolog.Nop())
	ctx := context.Background()

	t.Run("with groups", func(t *testing.T) {
		overviews, err := ops.ChannelOverviews(ctx, true)
		require.NoError(t, err)
		require.Len(t, overviews, 2)

		// Sorted by name regardless of server order
		alpha, beta := overviews[0], overviews[1]
		assert.Equal(t, "Alpha Inbound", alpha.Channel.Name)
		assert.Equal(t, "Beta Outbound", beta.Channel.Name)

		require.NotNil(t, alpha.Statistics)
		assert.Equal(t, int64(10), alpha.Statistics.Received)
		assert.True(t, alpha.Deployed())
		assert.Equal(t, []string{"Production"}, alpha.Groups)

		assert.Nil(t, beta.Statistics)
		assert.False(t, beta.Deployed())
		assert.Empty(t, beta.Groups)
	})

	t.Run("without groups", func(t *testing.T) {
		overviews, err := ops.ChannelOverviews(ctx, false)
		require.NoError(t, err)
		require.Len(t, overviews, 2)
		assert.Empty(t, overviews[0].Groups)
	})
}

func TestOperationsSearchMessages(t *testing.T) {
	hasErrors := func(m Message) bool {
		return len(m.FailedConnectors()) > 0
	}

	t.Run("pages until exhausted", func(t *testing.T) {
		mockAPI := &mockMirthAPI{messages: testMessages(5, 2, 4)}
		ops := NewOperations(mockAPI, zerolog.Nop())

		messages, err := ops.SearchMessages(context.Background(), testChannelID,
			MessageSearch{}, hasErrors, SearchOptions{PageSize: 2})
		require.NoError(t, err)

		require.Len(t, messages, 2)
		assert.Equal(t, int64(2), messages[0].MessageID)
		assert.Equal(t, int64(4), messages[1].MessageID)
		assert.Equal(t, 3, mockAPI.getMessagesCalls, "5 messages at page size 2 is 3 pages")
	})

	t.Run("stops at max results", func(t *testing.T) {
		mockAPI := &mockMirthAPI{messages: testMessages(5, 2, 4)}
		ops := NewOperations(mockAPI, zerolog.Nop())

		messages, err := ops.SearchMessages(context.Background(), testChannelID,
			MessageSearch{}, hasErrors, SearchOptions{PageSize: 2, MaxResults: 1})
		require.NoError(t, err)

		require.Len(t, messages, 1)
		assert.Equal(t, int64(2), messages[0].MessageID)
		assert.Equal(t, 1, mockAPI.getMessagesCalls)
	})

	t.Run("nil match accepts everything", func(t *testing.T) {
		mockAPI := &mockMirthAPI{messages: testMessages(3)}
		ops := NewOperations(mockAPI, zerolog.Nop())

		messages, err := ops.SearchMessages(context.Background(), testChannelID,
			MessageSearch{}, nil, SearchOptions{PageSize: 10})
		require.NoError(t, err)
		assert.Len(t, messages, 3)
	})
}

func TestOperationsSearchEvents(t *testing.T) {
	mockAPI := &mockMirthAPI{events: []Event{
		{ID: 1, Level: EventLevelInformation, Name: "User logged in"},
		{ID: 2, Level: EventLevelError, Name: "Channel deploy failed"},
		{ID: 3, Level: EventLevelInformation, Name: "User logged out"},
	}}
	ops := NewOperations(mockAPI, zerolog.Nop())

	events, err := ops.SearchEvents(context.Background(), EventSearch{},
		func(e Event) bool { return e.Level == EventLevelError },
		SearchOptions{PageSize: 2})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].ID)
}

func TestBatchReprocess(t *testing.T) {
	t.Run("aggregates failures", func(t *testing.T) {
		mockAPI := &mockMirthAPI{
			reprocessErr: map[int64]error{2: errors.New("channel not deployed")},
		}
		ops := NewOperations(mockAPI, zerolog.Nop())

		result := ops.BatchReprocess(context.Background(), testChannelID,
			[]int64{1, 2, 3}, ReprocessOptions{})

		assert.Equal(t, 3, result.Requested)
		assert.ElementsMatch(t, []int64{1, 3}, result.Successful)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, int64(2), result.Failed[0].MessageID)
		assert.ElementsMatch(t, []int64{1, 2, 3}, mockAPI.reprocessed)
	})

	t.Run("empty batch", func(t *testing.T) {
		mockAPI := &mockMirthAPI{}
		ops := NewOperations(mockAPI, zerolog.Nop())

		result := ops.BatchReprocess(context.Background(), testChannelID, nil, ReprocessOptions{})
		assert.Equal(t, 0, result.Requested)
		assert.Empty(t, mockAPI.reprocessed)
	})
}

func TestReprocessMessages(t *testing.T) {
	t.Run("dry run touches nothing", func(t *testing.T) {
		mockAPI := &mockMirthAPI{}
		ops := NewOperations(mockAPI, zerolog.Nop())

		err := ops.ReprocessMessages(context.Background(), testChannelID,
			[]int64{1, 2}, ReprocessRunOptions{DryRun: true})
		require.NoError(t, err)
		assert.Empty(t, mockAPI.reprocessed)
	})

	t.Run("reports failures", func(t *testing.T) {
		mockAPI := &mockMirthAPI{
			reprocessErr: map[int64]error{1: errors.New("boom")},
		}
		ops := NewOperations(mockAPI, zerolog.Nop())

		err := ops.ReprocessMessages(context.Background(), testChannelID,
			[]int64{1, 2}, ReprocessRunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to reprocess 1 messages")
	})

	t.Run("all successful", func(t *testing.T) {
		mockAPI := &mockMirthAPI{}
		ops := NewOperations(mockAPI, zerolog.Nop())

		err := ops.ReprocessMessages(context.Background(), testChannelID,
			[]int64{1, 2}, ReprocessRunOptions{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2}, mockAPI.reprocessed)
	})
}

func TestLoadContent(t *testing.T) {
	raw := &MessageContent{Content: "MSH|^~\\&|HIS", ContentType: "RAW"}
	mockAPI := &mockMirthAPI{
		fullMessages: map[int64]Message{
			1: {
				MessageID: 1,
				ConnectorMessages: ConnectorMessageMap{
					0: {MetaDataID: 0, ConnectorName: "Source", Status: StatusTransformed, Raw: raw},
				},
			},
		},
		getMessageErr: map[int64]error{2: errors.New("gone")},
	}
	ops := NewOperations(mockAPI, zerolog.Nop())

	messages := []Message{
		{MessageID: 1, ConnectorMessages: ConnectorMessageMap{0: {MetaDataID: 0, Status: StatusTransformed}}},
		{MessageID: 2, ConnectorMessages: ConnectorMessageMap{0: {MetaDataID: 0, Status: StatusTransformed}}},
	}

	require.NoError(t, ops.LoadContent(context.Background(), testChannelID, messages))

	require.NotNil(t, messages[0].ConnectorMessages[0].Raw)
	assert.Equal(t, "MSH|^~\\&|HIS", messages[0].ConnectorMessages[0].Raw.Content)
	// The failed fetch leaves the bare entry in place.
	assert.Nil(t, messages[1].ConnectorMessages[0].Raw)
}
