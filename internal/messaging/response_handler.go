package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/Lumi/internal/models"
)

// Conversation produces the reply for one inbound message and records the
// exchange. flow.Router implements it.
type Conversation interface {
	Converse(ctx context.Context, raw, senderID string) (models.Reply, error)
}

// ResponseHandler consumes inbound messages from a Service, runs each one
// through the Conversation in its own goroutine and sends the reply back.
type ResponseHandler struct {
	msgService   Service
	conversation Conversation
	wg           sync.WaitGroup
}

// NewResponseHandler creates a ResponseHandler.
func NewResponseHandler(msgService Service, conversation Conversation) *ResponseHandler {
	return &ResponseHandler{msgService: msgService, conversation: conversation}
}

// ProcessResponse handles a single inbound message synchronously.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	senderID, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	reply, err := rh.conversation.Converse(ctx, response.Body, senderID)
	if err != nil {
		// The reply is still valid; only the history write failed.
		slog.Error("ResponseHandler.ProcessResponse: failed to record history", "senderID", senderID, "error", err)
	}
	if reply.Response == "" {
		return nil
	}
	if err := rh.msgService.SendMessage(ctx, senderID, reply.Response); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	slog.Debug("ResponseHandler.ProcessResponse: reply sent", "senderID", senderID)
	return nil
}

// Run dispatches inbound messages until ctx is done or the Responses channel
// closes, then waits for in-flight messages to finish.
func (rh *ResponseHandler) Run(ctx context.Context) error {
	slog.Info("ResponseHandler.Run: processing inbound messages")
	defer rh.wg.Wait()
	for {
		select {
		case response, ok := <-rh.msgService.Responses():
			if !ok {
				slog.Debug("ResponseHandler.Run: responses channel closed")
				return nil
			}
			rh.wg.Add(1)
			go func(resp models.Response) {
				defer rh.wg.Done()
				if err := rh.ProcessResponse(ctx, resp); err != nil {
					slog.Error("ResponseHandler.Run: failed to process message", "from", resp.From, "error", err)
				}
			}(response)
		case <-ctx.Done():
			return nil
		}
	}
}

// Wait blocks until every dispatched message has been handled.
func (rh *ResponseHandler) Wait() {
	rh.wg.Wait()
}
