// Package mirth provides a client for interacting with the Mirth Connect REST API.
//
// Mirth Connect (NextGen Connect) is a healthcare integration engine that routes
// and transforms HL7, FHIR and other clinical messages through channels. This
// package implements a clean, idiomatic Go client for managing channels,
// messages and server events over the engine's XML REST API.
//
// # Architecture
//
// The package is organized into several components:
//
//   - Client: The main API client with cookie-session authentication
//   - ChannelAPI: A per-channel handle for message operations
//   - Models: Domain models decoded from Mirth's XML wire format
//   - Operations: Higher-level orchestration (overviews, batch reprocessing)
//   - Errors: Structured error types for better error handling
//
// # Usage
//
// Create a new client with your Mirth Connect URL and log in:
//
//	logger := zerolog.New(os.Stdout)
//	client, err := mirth.NewClient(
//		"https://mirth.example.com:8443",
//		logger,
//		mirth.WithTimeout(30*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if _, err := client.Login(ctx, "admin", "admin"); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Logout(ctx)
//
//	// Fetch all channels
//	channels, err := client.GetChannels(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Send a message to a channel
//	ch := client.Channel(channels[0].ID)
//	msg, err := ch.SendMessage(ctx, "MSH|^~\\&|...", mirth.SendOptions{})
//
// # Features
//
//   - Context-aware API calls with proper cancellation
//   - Session cookie handling across requests
//   - Typed decoding of Mirth's XML map and timestamp encodings
//   - Server-version-aware message posting
//   - Structured error types with classification methods
//
// # Error Handling
//
// The package defines several error types:
//
//   - ErrInvalidConfig: Invalid client configuration
//   - ErrLoginFailed: Credentials rejected by the server
//   - ErrUnauthorized: Session expired or missing
//   - ErrNotFound: Resource not found
//   - APIError: Structured API errors with status codes
//   - PostError: A delivered message whose connectors reported errors
//
// API errors include helper methods for classification:
//
//	if apiErr, ok := err.(*mirth.APIError); ok {
//		if apiErr.IsUnauthorized() {
//			// Re-authenticate
//		}
//	}
package mirth
