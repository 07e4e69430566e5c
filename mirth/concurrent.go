package mirth

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Concurrency limits for batch operations
const (
	DefaultBatchSize     = 10
	ReprocessConcurrency = 5
)

// BatchReprocessResult contains the results of a batch reprocess operation
type BatchReprocessResult struct {
	Requested  int
	Successful []int64
	Failed     []ReprocessError
}

// ReprocessError contains information about a failed reprocess operation
type ReprocessError struct {
	MessageID int64
	Err       error
}

// Error implements the error interface
func (e ReprocessError) Error() string {
	return fmt.Sprintf("failed to reprocess message %d: %v", e.MessageID, e.Err)
}

// BatchReprocess reprocesses messages concurrently with proper error
// aggregation. Individual failures do not stop the batch.
func (o *Operations) BatchReprocess(ctx context.Context, channelID uuid.UUID, messageIDs []int64, opts ReprocessOptions) BatchReprocessResult {
	result := BatchReprocessResult{
		Requested: len(messageIDs),
	}

	if len(messageIDs) == 0 {
		return result
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ReprocessConcurrency)

	successChan := make(chan int64, len(messageIDs))
	errorChan := make(chan ReprocessError, len(messageIDs))

	for _, id := range messageIDs {
		id := id
		g.Go(func() error {
			_, err := o.api.ReprocessMessage(ctx, channelID, id, opts)
			if err != nil {
				errorChan <- ReprocessError{
					MessageID: id,
					Err:       err,
				}
			} else {
				successChan <- id
			}
			return nil // Don't stop on individual errors
		})
	}

	g.Wait()
	close(successChan)
	close(errorChan)

	for id := range successChan {
		result.Successful = append(result.Successful, id)
	}
	for err := range errorChan {
		result.Failed = append(result.Failed, err)
	}

	return result
}

// LoadContent fetches full message content concurrently for messages that
// were listed without it. Failures leave the original entry in place.
func (o *Operations) LoadContent(ctx context.Context, channelID uuid.UUID, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultBatchSize)

	var mu sync.Mutex

	for i := range messages {
		i := i
		g.Go(func() error {
			full, err := o.api.GetMessage(ctx, channelID, messages[i].MessageID, true)
			if err != nil {
				o.logger.Warn().
					Err(err).
					Int64("message_id", messages[i].MessageID).
					Msg("Failed to load message content")
				// Continue processing other messages
				return nil
			}

			mu.Lock()
			messages[i] = *full
			mu.Unlock()

			return nil
		})
	}

	return g.Wait()
}
