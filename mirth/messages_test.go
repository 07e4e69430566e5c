package mirth

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/blang/semver"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChannelID = uuid.MustParse("4100b8a0-f3ae-4e99-a3e9-0ebbbca4b58f")

const deliveredMessageXML = `<message>
  <messageId>11</messageId>
  <serverId>ab1dd1e3-6ab8-4b5c-b3f5-4e2b4b129d86</serverId>
  <channelId>4100b8a0-f3ae-4e99-a3e9-0ebbbca4b58f</channelId>
  <receivedDate>
    <time>1643708252777</time>
    <timezone>America/Chicago</timezone>
  </receivedDate>
  <processed>true</processed>
  <connectorMessages class="linked-hash-map">
    <entry>
      <int>0</int>
      <connectorMessage>
        <chainId>0</chainId>
        <orderId>0</orderId>
        <serverId>ab1dd1e3-6ab8-4b5c-b3f5-4e2b4b129d86</serverId>
        <channelId>4100b8a0-f3ae-4e99-a3e9-0ebbbca4b58f</channelId>
        <channelName>ADT Inbound</channelName>
        <connectorName>Source</connectorName>
        <messageId>11</messageId>
        <metaDataId>0</metaDataId>
        <status>TRANSFORMED</status>
        <receivedDate>
          <time>1643708252777</time>
          <timezone>America/Chicago</timezone>
        </receivedDate>
        <errorCode>0</errorCode>
        <sendAttempts>1</sendAttempts>
        <raw>
          <channelId>4100b8a0-f3ae-4e99-a3e9-0ebbbca4b58f</channelId>
          <content>MSH|^~\&amp;|HIS|RIH|EKG|EKG|199904140038||ADT^A01|12345|P|2.2</content>
          <contentType>RAW</contentType>
          <dataType>HL7V2</dataType>
          <encrypted>false</encrypted>
          <messageId>11</messageId>
          <messageDataId>0</messageDataId>
        </raw>
        <metaDataMap class="linked-hash-map">
          <entry>
            <string>SOURCE</string>
            <string>HIS</string>
          </entry>
        </metaDataMap>
      </connectorMessage>
    </entry>
    <entry>
      <int>1</int>
      <connectorMessage>
        <chainId>1</chainId>
        <orderId>1</orderId>
        <serverId>ab1dd1e3-6ab8-4b5c-b3f5-4e2b4b129d86</serverId>
        <channelId>4100b8a0-f3ae-4e99-a3e9-0ebbbca4b58f</channelId>
        <channelName>ADT Inbound</channelName>
        <connectorName>Destination 1</connectorName>
        <messageId>11</messageId>
        <metaDataId>1</metaDataId>
        <status>SENT</status>
        <errorCode>0</errorCode>
        <sendAttempts>1</sendAttempts>
      </connectorMessage>
    </entry>
  </connectorMessages>
</message>`

const erroredMessageXML = `<message>
  <messageId>12</messageId>
  <serverId>ab1dd1e3-6ab8-4b5c-b3f5-4e2b4b129d86</serverId>
  <channelId>4100b8a0-f3ae-4e99-a3e9-0ebbbca4b58f</channelId>
  <processed>true</processed>
  <connectorMessages class="linked-hash-map">
    <entry>
      <int>0</int>
      <connectorMessage>
        <connectorName>Source</connectorName>
        <metaDataId>0</metaDataId>
        <status>TRANSFORMED</status>
      </connectorMessage>
    </entry>
    <entry>
      <int>1</int>
      <connectorMessage>
        <connectorName>Database Writer</connectorName>
        <metaDataId>1</metaDataId>
        <status>ERROR</status>
        <errorCode>1</errorCode>
        <sendAttempts>3</sendAttempts>
        <response>
          <channelId>4100b8a0-f3ae-4e99-a3e9-0ebbbca4b58f</channelId>
          <content>&lt;response&gt;
  &lt;status&gt;ERROR&lt;/status&gt;
  &lt;message&gt;&lt;/message&gt;
  &lt;error&gt;java.sql.SQLException: ORA-00942: table or view does not exist&lt;/error&gt;
  &lt;statusMessage&gt;ERROR: ORA-00942: table or view does not exist&lt;/statusMessage&gt;
&lt;/response&gt;</content>
          <contentType>RESPONSE</contentType>
          <dataType>XML</dataType>
          <encrypted>false</encrypted>
          <messageId>12</messageId>
        </response>
      </connectorMessage>
    </entry>
  </connectorMessages>
</message>`

func TestMessageSearchValues(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v := MessageSearch{}.values()
		assert.Equal(t, "20", v.Get("limit"))
		assert.Equal(t, "0", v.Get("offset"))
		assert.Equal(t, "false", v.Get("includeContent"))
		assert.Empty(t, v["status"])
		assert.Empty(t, v.Get("minMessageId"))
		assert.Empty(t, v.Get("textSearch"))
	})

	t.Run("statuses upper-cased", func(t *testing.T) {
		v := MessageSearch{Statuses: []string{"error", "Queued"}}.values()
		assert.Equal(t, []string{"ERROR", "QUEUED"}, v["status"])
	})

	t.Run("full search", func(t *testing.T) {
		v := MessageSearch{
			Limit:          50,
			Offset:         100,
			IncludeContent: true,
			MinMessageID:   5,
			MaxMessageID:   10,
			TextSearch:     "ADT^A01",
		}.values()
		assert.Equal(t, "50", v.Get("limit"))
		assert.Equal(t, "100", v.Get("offset"))
		assert.Equal(t, "true", v.Get("includeContent"))
		assert.Equal(t, "5", v.Get("minMessageId"))
		assert.Equal(t, "10", v.Get("maxMessageId"))
		assert.Equal(t, "ADT^A01", v.Get("textSearch"))
	})
}

func TestGetMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/channels/"+testChannelID.String()+"/messages", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "20", query.Get("limit"))
		assert.Equal(t, []string{"ERROR"}, query["status"])

		w.Write([]byte(`<list>` + erroredMessageXML + `</list>`))
	})

	messages, err := client.GetMessages(context.Background(), testChannelID, MessageSearch{
		Statuses: []string{"error"},
	})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, int64(12), messages[0].MessageID)
}

func TestGetMessage(t *testing.T) {
	t.Run("with content", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/channels/"+testChannelID.String()+"/messages/11", r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("includeContent"))
			w.Write([]byte(deliveredMessageXML))
		})

		message, err := client.GetMessage(context.Background(), testChannelID, 11, true)
		require.NoError(t, err)

		assert.Equal(t, int64(11), message.MessageID)
		assert.Equal(t, testChannelID, message.ChannelID)
		assert.True(t, message.Processed)
		assert.Equal(t, int64(1643708252777), message.ReceivedDate.UnixMilli())

		require.Len(t, message.ConnectorMessages, 2)
		source := message.ConnectorMessages[0]
		assert.Equal(t, "Source", source.ConnectorName)
		assert.Equal(t, StatusTransformed, source.Status)
		require.NotNil(t, source.Raw)
		assert.Contains(t, source.Raw.Content, "ADT^A01")
		assert.Equal(t, "HL7V2", source.Raw.DataType)
		assert.Equal(t, EntryMap{"SOURCE": "HIS"}, source.MetaDataMap)

		destination := message.ConnectorMessages[1]
		assert.Equal(t, StatusSent, destination.Status)
		assert.Empty(t, message.FailedConnectors())
	})

	t.Run("unknown id returns empty body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		_, err := client.GetMessage(context.Background(), testChannelID, 999, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPreviewMessage(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			assert.Equal(t, "1", query.Get("limit"))
			assert.Equal(t, "11", query.Get("minMessageId"))
			assert.Equal(t, "11", query.Get("maxMessageId"))
			assert.Equal(t, "false", query.Get("includeContent"))
			w.Write([]byte(`<list>` + deliveredMessageXML + `</list>`))
		})

		message, err := client.PreviewMessage(context.Background(), testChannelID, 11)
		require.NoError(t, err)
		assert.Equal(t, int64(11), message.MessageID)
	})

	t.Run("not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<list/>`))
		})

		_, err := client.PreviewMessage(context.Background(), testChannelID, 999)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSendMessage(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		var postedBody []byte
		mux := http.NewServeMux()
		mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
			postedBody, _ = io.ReadAll(r.Body)
			w.Write([]byte(`<long>11</long>`))
		})
		mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages/11", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "true", r.URL.Query().Get("includeContent"))
			w.Write([]byte(deliveredMessageXML))
		})

		client := newTestClient(t, mux.ServeHTTP)

		message, err := client.SendMessage(context.Background(), testChannelID,
			"MSH|^~\\&|HIS|RIH|EKG|EKG|199904140038||ADT^A01|12345|P|2.2",
			SendOptions{SourceMap: map[string]string{"origin": "mirthctl"}})
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.Equal(t, int64(11), message.MessageID)

		body := string(postedBody)
		assert.Contains(t, body, "<com.mirth.connect.donkey.model.message.RawMessage>")
		assert.Contains(t, body, "<binary>false</binary>")
		assert.Contains(t, body, "<rawData>MSH|^~\\&amp;|HIS|RIH|EKG|EKG|199904140038||ADT^A01|12345|P|2.2</rawData>")
		assert.Contains(t, body, "<entry><string>origin</string><string>mirthctl</string></entry>")
	})

	t.Run("connector failed", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<long>12</long>`))
		})
		mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages/12", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(erroredMessageXML))
		})

		client := newTestClient(t, mux.ServeHTTP)

		message, err := client.SendMessage(context.Background(), testChannelID, "MSH|bad", SendOptions{})
		require.Error(t, err)

		var postErr *PostError
		require.ErrorAs(t, err, &postErr)
		assert.Equal(t, int64(12), postErr.MessageID)
		require.Len(t, postErr.Failures, 1)
		assert.Equal(t, "Database Writer", postErr.Failures[0].ConnectorName)
		assert.Contains(t, postErr.Failures[0].Reason, "ORA-00942")

		// The message is still returned for inspection.
		require.NotNil(t, message)
		assert.Equal(t, int64(12), message.MessageID)
	})

	t.Run("skip error check", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<long>12</long>`))
		})
		mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages/12", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(erroredMessageXML))
		})

		client := newTestClient(t, mux.ServeHTTP)

		message, err := client.SendMessage(context.Background(), testChannelID, "MSH|bad",
			SendOptions{SkipErrorCheck: true})
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.Len(t, message.FailedConnectors(), 1)
	})

	t.Run("legacy server without message id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		message, err := client.SendMessage(context.Background(), testChannelID, "MSH|", SendOptions{})
		require.NoError(t, err)
		assert.Nil(t, message)
	})
}

func TestSendMessageEndpointSelection(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		wantPath string
	}{
		{
			name:     "modern server",
			version:  "4.4.0",
			wantPath: "/api/channels/" + testChannelID.String() + "/messagesWithObj",
		},
		{
			name:     "old server",
			version:  "3.8.1",
			wantPath: "/api/channels/" + testChannelID.String() + "/messages",
		},
		{
			name:     "unknown version",
			wantPath: "/api/channels/" + testChannelID.String() + "/messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(http.StatusNoContent)
			})

			if tt.version != "" {
				client.mu.Lock()
				client.version = semver.MustParse(tt.version)
				client.versionKnown = true
				client.mu.Unlock()
			}

			_, err := client.SendMessage(context.Background(), testChannelID, "MSH|", SendOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, gotPath)
		})
	}
}

func TestReprocessMessage(t *testing.T) {
	var reprocessQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages/11/_reprocess", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		reprocessQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/channels/"+testChannelID.String()+"/messages/11", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(deliveredMessageXML))
	})

	client := newTestClient(t, mux.ServeHTTP)

	message, err := client.ReprocessMessage(context.Background(), testChannelID, 11, ReprocessOptions{
		Replace:            true,
		FilterDestinations: false,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), message.MessageID)
	assert.Contains(t, reprocessQuery, "replace=true")
	assert.Contains(t, reprocessQuery, "filterDestinations=false")
}
