package mirth

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
)

// DefaultEventLimit bounds event queries that do not set a limit.
const DefaultEventLimit = 20

// EventSearch narrows an event listing. The zero value returns the first
// DefaultEventLimit events.
type EventSearch struct {
	Limit  int
	Offset int
	// Level filters on event severity (INFORMATION, WARNING, ERROR).
	Level string
	// Outcome filters on SUCCESS or FAILURE; any other value is ignored
	// since the server rejects unknown outcomes.
	Outcome string
	// UserID filters on the acting user. User 0 is the admin account, so
	// nil rather than zero means unfiltered.
	UserID *int
	// Name matches against the event name server-side.
	Name string
}

func (s EventSearch) values() url.Values {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(s.Offset))
	if s.Level != "" {
		params.Set("level", s.Level)
	}
	if s.Outcome == OutcomeSuccess || s.Outcome == OutcomeFailure {
		params.Set("outcome", s.Outcome)
	}
	if s.UserID != nil {
		params.Set("userId", strconv.Itoa(*s.UserID))
	}
	if s.Name != "" {
		params.Set("name", s.Name)
	}
	return params
}

// GetEvents retrieves a page of server events.
func (c *Client) GetEvents(ctx context.Context, search EventSearch) ([]Event, error) {
	body, err := c.get(ctx, "/events", search.values())
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	events, err := decodeList[Event](body, "event")
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(events)).Msg("Retrieved events from Mirth")
	return events, nil
}

// GetEvent retrieves a single server event by ID.
func (c *Client) GetEvent(ctx context.Context, id int64) (*Event, error) {
	body, err := c.get(ctx, fmt.Sprintf("/events/%d", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}

	var event Event
	if err := xml.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &event, nil
}
