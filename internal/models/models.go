// Package models defines the core data structures for Lumi.
//
// It includes the conversation session, reply, response pattern and history
// types shared across modules, plus the JSON envelopes used by the HTTP API.
package models

import (
	"errors"
	"strings"
)

// Limits on inbound chatbot requests.
const (
	// MaxMessageLength defines the maximum allowed length for an inbound chat message
	MaxMessageLength = 4096
	// MaxSenderIDLength defines the maximum allowed length for a sender identifier
	MaxSenderIDLength = 128
)

// Validation errors returned by request and model checks.
var (
	ErrEmptySenderID     = errors.New("senderId cannot be empty")
	ErrSenderIDTooLong   = errors.New("senderId exceeds maximum length")
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrMessageTooLong    = errors.New("message exceeds maximum length")
	ErrEmptyPatterns     = errors.New("patterns must contain at least one non-empty phrase")
	ErrEmptyResponses    = errors.New("responses must contain at least one non-empty reply")
	ErrInvalidMode       = errors.New("invalid session mode")
	ErrInvalidFollowTime = errors.New("follow-up time must use HH:mm format")
)

// ChatbotRequest is the inbound envelope accepted by the chatbot endpoint.
type ChatbotRequest struct {
	Message  string `json:"message"`
	SenderID string `json:"senderId"`
}

// Validate checks that the request carries a sender and a non-empty message.
func (r *ChatbotRequest) Validate() error {
	if strings.TrimSpace(r.SenderID) == "" {
		return ErrEmptySenderID
	}
	if len(r.SenderID) > MaxSenderIDLength {
		return ErrSenderIDTooLong
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// DisableSupportRequest asks the system to stop proactive follow-ups for a sender.
type DisableSupportRequest struct {
	SenderID string `json:"senderId"`
}

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates data was successfully recorded via API.
	APIStatusRecorded APIStatus = "recorded"
)

// Receipt is a delivery event emitted by a messaging service.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming chat message from a sender.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// MediaResult is a single hit returned by an image or video search.
type MediaResult struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithResult(result).Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithMessage(message).WithResult(result).Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusError).WithMessage(message).Build()
}

// RecordedWithMessage creates a recorded API response with a message.
func RecordedWithMessage(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusRecorded).WithMessage(message).Build()
}
