package mirth

import (
	"encoding/xml"
	"strconv"

	"github.com/google/uuid"
)

// Login statuses reported by the server. A grace-period login is still a
// usable session, the password is merely close to expiry.
const (
	LoginSuccess            = "SUCCESS"
	LoginSuccessGracePeriod = "SUCCESS_GRACE_PERIOD"
	LoginFail               = "FAIL"
	LoginFailLockedOut      = "FAIL_LOCKED_OUT"
	LoginFailExpired        = "FAIL_EXPIRED"
)

// LoginStatus is the server response to a login attempt.
type LoginStatus struct {
	XMLName         xml.Name `xml:"com.mirth.connect.model.LoginStatus"`
	Status          string   `xml:"status"`
	Message         string   `xml:"message"`
	UpdatedUsername string   `xml:"updatedUsername"`
}

// LoggedIn reports whether the attempt produced a usable session.
func (s *LoginStatus) LoggedIn() bool {
	return s.Status == LoginSuccess || s.Status == LoginSuccessGracePeriod
}

// Channel is the basic metadata of a Mirth channel.
type Channel struct {
	ID          uuid.UUID `xml:"id"`
	Name        string    `xml:"name"`
	Description string    `xml:"description"`
	Revision    int       `xml:"revision"`
}

// ChannelGroup is a named grouping of channels.
type ChannelGroup struct {
	ID          uuid.UUID    `xml:"id"`
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	Revision    int          `xml:"revision"`
	Channels    []ChannelRef `xml:"channels>channel"`
}

// ChannelRef is the id/revision pair a group uses to reference its members.
type ChannelRef struct {
	ID       uuid.UUID `xml:"id"`
	Revision int       `xml:"revision"`
}

// ChannelStatistics holds the lifetime message counters of a channel.
type ChannelStatistics struct {
	ServerID  uuid.UUID `xml:"serverId"`
	ChannelID uuid.UUID `xml:"channelId"`
	Received  int64     `xml:"received"`
	Sent      int64     `xml:"sent"`
	Error     int64     `xml:"error"`
	Filtered  int64     `xml:"filtered"`
	Queued    int64     `xml:"queued"`
}

// Deployment states shown on the dashboard.
const (
	ChannelStarted = "STARTED"
	ChannelStopped = "STOPPED"
	ChannelPaused  = "PAUSED"
)

// DashboardStatus is the deployed state of a channel.
type DashboardStatus struct {
	ChannelID             uuid.UUID `xml:"channelId"`
	Name                  string    `xml:"name"`
	State                 string    `xml:"state"`
	DeployedRevisionDelta int       `xml:"deployedRevisionDelta"`
	DeployedDate          Time      `xml:"deployedDate"`
}

// Event severity levels.
const (
	EventLevelInformation = "INFORMATION"
	EventLevelWarning     = "WARNING"
	EventLevelError       = "ERROR"
)

// Event outcomes accepted by the events endpoint.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

// Event is a server audit event.
type Event struct {
	ID         int64    `xml:"id"`
	Level      string   `xml:"level"`
	Name       string   `xml:"name"`
	Outcome    string   `xml:"outcome"`
	Attributes EntryMap `xml:"attributes"`
	UserID     int      `xml:"userId"`
	IPAddress  string   `xml:"ipAddress"`
	DateTime   Time     `xml:"dateTime"`
}

// Connector message lifecycle statuses.
const (
	StatusReceived    = "RECEIVED"
	StatusFiltered    = "FILTERED"
	StatusTransformed = "TRANSFORMED"
	StatusSent        = "SENT"
	StatusQueued      = "QUEUED"
	StatusError       = "ERROR"
	StatusPending     = "PENDING"
)

// Message is a message processed by a channel, including the per-connector
// processing results.
type Message struct {
	MessageID         int64               `xml:"messageId"`
	ServerID          uuid.UUID           `xml:"serverId"`
	ChannelID         uuid.UUID           `xml:"channelId"`
	Processed         bool                `xml:"processed"`
	ReceivedDate      Time                `xml:"receivedDate"`
	ConnectorMessages ConnectorMessageMap `xml:"connectorMessages"`
}

// FailedConnectors returns the connectors that finished in the ERROR state.
func (m *Message) FailedConnectors() []ConnectorFailure {
	var failures []ConnectorFailure
	for metaDataID, cm := range m.ConnectorMessages {
		if cm.Status != StatusError {
			continue
		}
		failures = append(failures, ConnectorFailure{
			MetaDataID:    metaDataID,
			ConnectorName: cm.ConnectorName,
			Reason:        cm.FailureReason(),
		})
	}
	return failures
}

// ConnectorMessage is the processing record of one connector for a message.
// Metadata ID 0 is the source connector.
type ConnectorMessage struct {
	ChainID       int             `xml:"chainId"`
	OrderID       int             `xml:"orderId"`
	ServerID      uuid.UUID       `xml:"serverId"`
	ChannelID     uuid.UUID       `xml:"channelId"`
	ChannelName   string          `xml:"channelName"`
	ConnectorName string          `xml:"connectorName"`
	MessageID     int64           `xml:"messageId"`
	MetaDataID    int             `xml:"metaDataId"`
	Status        string          `xml:"status"`
	ReceivedDate  Time            `xml:"receivedDate"`
	ErrorCode     int             `xml:"errorCode"`
	SendAttempts  int             `xml:"sendAttempts"`
	Raw           *MessageContent `xml:"raw"`
	Encoded       *MessageContent `xml:"encoded"`
	Sent          *MessageContent `xml:"sent"`
	Response      *MessageContent `xml:"response"`
	MetaDataMap   EntryMap        `xml:"metaDataMap"`
}

// FailureReason extracts a human-readable reason for an errored connector.
// The response content carries a nested XML document whose statusMessage is
// the concise summary; the error element holds the full stack trace and the
// message element is usually empty. Falls back to the numeric error code
// when no response content is available.
func (cm *ConnectorMessage) FailureReason() string {
	if cm.Response != nil && cm.Response.Content != "" {
		var resp ConnectorResponse
		if err := xml.Unmarshal([]byte(cm.Response.Content), &resp); err == nil {
			if reason := resp.Reason(); reason != "" {
				return reason
			}
		}
	}
	return "error code " + strconv.Itoa(cm.ErrorCode)
}

// ConnectorResponse is the XML document a connector writes as its response
// content, carrying the delivery status and any error detail.
type ConnectorResponse struct {
	XMLName       xml.Name `xml:"response"`
	Status        string   `xml:"status"`
	Message       string   `xml:"message"`
	Error         string   `xml:"error"`
	StatusMessage string   `xml:"statusMessage"`
}

// Reason returns the most specific non-empty description of the response.
func (r *ConnectorResponse) Reason() string {
	for _, s := range []string{r.StatusMessage, r.Error, r.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

// MessageContent is one content snapshot of a connector message, such as the
// raw inbound payload or the encoded outbound one.
type MessageContent struct {
	ChannelID     uuid.UUID `xml:"channelId"`
	Content       string    `xml:"content"`
	ContentType   string    `xml:"contentType"`
	DataType      string    `xml:"dataType"`
	Encrypted     bool      `xml:"encrypted"`
	MessageID     int64     `xml:"messageId"`
	MessageDataID int64     `xml:"messageDataId"`
}

// RawMessage is the payload posted to a channel to originate a message.
type RawMessage struct {
	XMLName   xml.Name `xml:"com.mirth.connect.donkey.model.message.RawMessage"`
	Binary    bool     `xml:"binary"`
	Data      string   `xml:"rawData,omitempty"`
	SourceMap EntryMap `xml:"sourceMap,omitempty"`
}
