// Package messaging provides the transport-neutral delivery Service used by Lumi
// and the inbound ResponseHandler that turns user messages into replies.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size of the receipt and response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds a blocked channel send before the event is dropped.
	DefaultChannelTimeout = 1 * time.Second
	// minPhoneDigits is the shortest accepted canonical phone number.
	minPhoneDigits = 6
)

// ErrServiceStopped is returned by SendMessage after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient returns the digits-only form of recipient.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	SendMessage(ctx context.Context, to string, body string) error

	// Start begins background event processing.
	Start(ctx context.Context) error

	// Stop ends background processing and closes the event channels.
	Stop() error

	// Receipts returns delivery events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns inbound user messages.
	Responses() <-chan models.Response
}

// canonicalizePhone strips every non-digit from recipient.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < minPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, minPhoneDigits)
	}
	return canonical, nil
}
