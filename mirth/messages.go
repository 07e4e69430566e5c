package mirth

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/google/uuid"
)

// DefaultMessageLimit bounds message queries that do not set a limit.
const DefaultMessageLimit = 20

// MessageSearch narrows a message listing. The zero value returns the first
// DefaultMessageLimit messages without content.
type MessageSearch struct {
	Limit          int
	Offset         int
	IncludeContent bool
	// Statuses filters on connector status, upper-cased before sending.
	Statuses []string
	// MinMessageID and MaxMessageID bound the message ID range. Zero
	// means unbounded.
	MinMessageID int64
	MaxMessageID int64
	// TextSearch matches against message content server-side.
	TextSearch string
}

func (s MessageSearch) values() url.Values {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(s.Offset))
	params.Set("includeContent", strconv.FormatBool(s.IncludeContent))
	for _, status := range s.Statuses {
		params.Add("status", strings.ToUpper(status))
	}
	if s.MinMessageID > 0 {
		params.Set("minMessageId", strconv.FormatInt(s.MinMessageID, 10))
	}
	if s.MaxMessageID > 0 {
		params.Set("maxMessageId", strconv.FormatInt(s.MaxMessageID, 10))
	}
	if s.TextSearch != "" {
		params.Set("textSearch", s.TextSearch)
	}
	return params
}

// GetMessages retrieves messages processed by a channel.
func (c *Client) GetMessages(ctx context.Context, channelID uuid.UUID, search MessageSearch) ([]Message, error) {
	body, err := c.get(ctx, fmt.Sprintf("/channels/%s/messages", channelID), search.values())
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for channel %s: %w", channelID, err)
	}

	messages, err := decodeList[Message](body, "message")
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("count", len(messages)).
		Str("channel_id", channelID.String()).
		Msg("Retrieved messages from Mirth")
	return messages, nil
}

// GetMessage retrieves a single message by ID. Returns ErrNotFound if the
// channel has no such message.
func (c *Client) GetMessage(ctx context.Context, channelID uuid.UUID, messageID int64, includeContent bool) (*Message, error) {
	params := url.Values{}
	params.Set("includeContent", strconv.FormatBool(includeContent))

	body, err := c.get(ctx, fmt.Sprintf("/channels/%s/messages/%d", channelID, messageID), params)
	if err != nil {
		return nil, fmt.Errorf("failed to get message %d: %w", messageID, err)
	}

	// The server answers an unknown message ID with an empty 2xx body
	// rather than a 404.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("message %d on channel %s: %w", messageID, channelID, ErrNotFound)
	}

	var message Message
	if err := xml.Unmarshal(body, &message); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &message, nil
}

// PreviewMessage retrieves a minimal, content-free representation of a
// message via the listing endpoint. Returns ErrNotFound if the channel has
// no such message.
func (c *Client) PreviewMessage(ctx context.Context, channelID uuid.UUID, messageID int64) (*Message, error) {
	messages, err := c.GetMessages(ctx, channelID, MessageSearch{
		Limit:        1,
		MinMessageID: messageID,
		MaxMessageID: messageID,
	})
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("message %d on channel %s: %w", messageID, channelID, ErrNotFound)
	}
	return &messages[0], nil
}

// SendOptions configures SendMessage.
type SendOptions struct {
	// Binary marks the data as base64-encoded binary content.
	Binary bool
	// SourceMap seeds the message's source map variables.
	SourceMap map[string]string
	// SkipErrorCheck returns the delivered message without turning
	// errored connectors into a *PostError.
	SkipErrorCheck bool
}

// minMessagesWithObjVersion is the first server version whose message
// posting endpoint reports the new message ID.
var minMessagesWithObjVersion = semver.MustParse("3.9.0")

// SendMessage posts raw data to a channel and returns the processed
// message. If any connector finished in the ERROR state the message is
// returned together with a *PostError, unless SkipErrorCheck is set.
//
// Servers older than 3.9.0 do not report the ID of the posted message; in
// that case both return values are nil.
func (c *Client) SendMessage(ctx context.Context, channelID uuid.UUID, data string, opts SendOptions) (*Message, error) {
	raw := RawMessage{
		Binary:    opts.Binary,
		Data:      data,
		SourceMap: EntryMap(opts.SourceMap),
	}
	payload, err := xml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode raw message: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.postMessagePath(channelID), nil, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to post message to channel %s: %w", channelID, err)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	messageID, err := decodeLong(body)
	if err != nil {
		return nil, err
	}

	// Content is needed here: the error detail of a failed destination
	// lives in its response content.
	message, err := c.GetMessage(ctx, channelID, messageID, true)
	if err != nil {
		return nil, fmt.Errorf("posted message %d: %w", messageID, err)
	}

	c.logger.Debug().
		Int64("message_id", messageID).
		Str("channel_id", channelID.String()).
		Msg("Posted message to Mirth")

	if !opts.SkipErrorCheck {
		if failures := message.FailedConnectors(); len(failures) > 0 {
			return message, &PostError{MessageID: messageID, Failures: failures}
		}
	}

	return message, nil
}

// postMessagePath selects the message posting endpoint. Servers at 3.9.0 or
// later accept messagesWithObj, which responds with the new message ID.
func (c *Client) postMessagePath(channelID uuid.UUID) string {
	if version, ok := c.cachedVersion(); ok && version.GTE(minMessagesWithObjVersion) {
		return fmt.Sprintf("/channels/%s/messagesWithObj", channelID)
	}
	return fmt.Sprintf("/channels/%s/messages", channelID)
}

// ReprocessOptions configures ReprocessMessage.
type ReprocessOptions struct {
	// Replace overwrites the original message instead of creating a new
	// one.
	Replace bool
	// FilterDestinations restricts reprocessing to the destinations the
	// message originally reached.
	FilterDestinations bool
}

// ReprocessMessage replays a stored message through its channel and returns
// the refreshed message record.
func (c *Client) ReprocessMessage(ctx context.Context, channelID uuid.UUID, messageID int64, opts ReprocessOptions) (*Message, error) {
	params := url.Values{}
	params.Set("replace", strconv.FormatBool(opts.Replace))
	params.Set("filterDestinations", strconv.FormatBool(opts.FilterDestinations))

	path := fmt.Sprintf("/channels/%s/messages/%d/_reprocess", channelID, messageID)
	if _, err := c.do(ctx, http.MethodPost, path, params, nil); err != nil {
		return nil, fmt.Errorf("failed to reprocess message %d: %w", messageID, err)
	}

	message, err := c.GetMessage(ctx, channelID, messageID, false)
	if err != nil {
		return nil, fmt.Errorf("reprocessed message %d: %w", messageID, err)
	}

	c.logger.Debug().
		Int64("message_id", messageID).
		Str("channel_id", channelID.String()).
		Msg("Reprocessed message")
	return message, nil
}
