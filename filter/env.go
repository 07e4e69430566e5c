package filter

import (
	"strings"
	"time"

	"github.com/mirthctl/mirthctl/mirth"
)

// createHelperFunctions creates the static helper functions used during compilation
func createHelperFunctions() map[string]any {
	funcs := make(map[string]any, 16)
	addHelperFunctions(funcs)
	return funcs
}

// addHelperFunctions adds the shared helper functions to the provided map
func addHelperFunctions(env map[string]any) {
	// Date helpers
	env["daysSince"] = func(t time.Time) int {
		return int(time.Since(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return time.Now().AddDate(0, 0, -days)
	}
	env["hoursAgo"] = func(hours int) time.Time {
		return time.Now().Add(-time.Duration(hours) * time.Hour)
	}
	env["parseDate"] = func(dateStr string) time.Time {
		t, _ := time.Parse("2006-01-02", dateStr)
		return t
	}
	// String helpers
	env["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["endsWith"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	env["lower"] = strings.ToLower
	env["upper"] = strings.ToUpper
	// Current time
	env["now"] = time.Now
}

// messageEnvironment creates the runtime environment for message filter
// evaluation
func messageEnvironment(message mirth.Message) map[string]any {
	env := make(map[string]any, 32)

	addHelperFunctions(env)

	// Direct message properties
	env["MessageID"] = message.MessageID
	env["ChannelID"] = message.ChannelID.String()
	env["Processed"] = message.Processed
	env["ReceivedDate"] = message.ReceivedDate.Time
	env["ConnectorCount"] = len(message.ConnectorMessages)

	// Message-specific helpers using closures
	env["hasErrors"] = createHasErrorsFunc(message)
	env["hasStatus"] = createHasStatusFunc(message.ConnectorMessages)
	env["sourceStatus"] = createSourceStatusFunc(message.ConnectorMessages)
	env["connectorStatus"] = createConnectorStatusFunc(message.ConnectorMessages)
	env["errorReason"] = createErrorReasonFunc(message)
	env["contentContains"] = createContentContainsFunc(message.ConnectorMessages)
	env["metaData"] = createMetaDataFunc(message.ConnectorMessages)

	return env
}

// eventEnvironment creates the runtime environment for event filter
// evaluation
func eventEnvironment(event mirth.Event) map[string]any {
	env := make(map[string]any, 32)

	addHelperFunctions(env)

	// Direct event properties
	env["ID"] = event.ID
	env["Level"] = event.Level
	env["Name"] = event.Name
	env["Outcome"] = event.Outcome
	env["UserID"] = event.UserID
	env["IPAddress"] = event.IPAddress
	env["DateTime"] = event.DateTime.Time
	env["Attributes"] = map[string]string(event.Attributes)

	// Event-specific helpers using closures
	env["attribute"] = createAttributeFunc(event.Attributes)
	env["hasAttribute"] = createHasAttributeFunc(event.Attributes)
	env["isError"] = func() bool { return event.Level == mirth.EventLevelError }
	env["failed"] = func() bool { return event.Outcome == mirth.OutcomeFailure }

	return env
}

// Helper factory functions, closures avoid recomputing per evaluation

func createHasErrorsFunc(message mirth.Message) func() bool {
	failed := len(message.FailedConnectors()) > 0
	return func() bool {
		return failed
	}
}

func createHasStatusFunc(connectors mirth.ConnectorMessageMap) func(string) bool {
	return func(status string) bool {
		target := strings.ToUpper(status)
		for _, cm := range connectors {
			if cm.Status == target {
				return true
			}
		}
		return false
	}
}

func createSourceStatusFunc(connectors mirth.ConnectorMessageMap) func() string {
	source, ok := connectors[0]
	return func() string {
		if !ok {
			return ""
		}
		return source.Status
	}
}

func createConnectorStatusFunc(connectors mirth.ConnectorMessageMap) func(string) string {
	return func(name string) string {
		for _, cm := range connectors {
			if strings.EqualFold(cm.ConnectorName, name) {
				return cm.Status
			}
		}
		return ""
	}
}

func createErrorReasonFunc(message mirth.Message) func() string {
	return func() string {
		failures := message.FailedConnectors()
		if len(failures) == 0 {
			return ""
		}
		return failures[0].Reason
	}
}

func createContentContainsFunc(connectors mirth.ConnectorMessageMap) func(string) bool {
	return func(substr string) bool {
		target := strings.ToLower(substr)
		for _, cm := range connectors {
			for _, content := range []*mirth.MessageContent{cm.Raw, cm.Encoded, cm.Sent} {
				if content == nil {
					continue
				}
				if strings.Contains(strings.ToLower(content.Content), target) {
					return true
				}
			}
		}
		return false
	}
}

func createMetaDataFunc(connectors mirth.ConnectorMessageMap) func(string) string {
	return func(key string) string {
		if source, ok := connectors[0]; ok {
			return source.MetaDataMap[key]
		}
		return ""
	}
}

func createAttributeFunc(attributes mirth.EntryMap) func(string) string {
	return func(key string) string {
		return attributes[key]
	}
}

func createHasAttributeFunc(attributes mirth.EntryMap) func(string) bool {
	return func(key string) bool {
		_, exists := attributes[key]
		return exists
	}
}
