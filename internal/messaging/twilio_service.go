package messaging

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go/client"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/twiliowhatsapp"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// TwilioOpts configures inbound webhook verification.
type TwilioOpts struct {
	AuthToken  string
	WebhookURL string
}

type TwilioOption func(*TwilioOpts)

// WithWebhookValidation enables X-Twilio-Signature checks. webhookURL must be
// the public URL Twilio posts to, since the signature covers it.
func WithWebhookValidation(authToken, webhookURL string) TwilioOption {
	return func(o *TwilioOpts) {
		o.AuthToken = authToken
		o.WebhookURL = webhookURL
	}
}

// TwilioService implements Service using the Twilio REST API for outbound
// messages and the Twilio webhook for inbound ones.
type TwilioService struct {
	client     twiliowhatsapp.TwilioWhatsAppSender
	validator  *client.RequestValidator
	webhookURL string
	receipts   chan models.Receipt
	responses  chan models.Response
	mu         sync.RWMutex
	stopped    bool
}

// NewTwilioService creates a TwilioService around sender.
func NewTwilioService(sender twiliowhatsapp.TwilioWhatsAppSender, opts ...TwilioOption) *TwilioService {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &TwilioService{
		client:     sender,
		webhookURL: cfg.WebhookURL,
		receipts:   make(chan models.Receipt, DefaultChannelBufferSize),
		responses:  make(chan models.Response, DefaultChannelBufferSize),
	}
	if cfg.AuthToken != "" && cfg.WebhookURL != "" {
		v := client.NewRequestValidator(cfg.AuthToken)
		s.validator = &v
	}
	return s
}

// ValidateAndCanonicalizeRecipient strips the whatsapp: prefix and every non-digit.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(strings.TrimPrefix(recipient, "whatsapp:"))
}

// Start is a no-op; inbound messages arrive through TwilioWebhookHandler.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels. It is idempotent.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	return nil
}

// SendMessage sends a message via Twilio and emits a sent receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}

	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendMessage: invalid recipient", "to", to, "error", err)
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// TwilioWebhookHandler accepts inbound Twilio message webhooks and forwards
// them to Responses. Status callbacks (MessageStatus without Body) become receipts.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("TwilioService.TwilioWebhookHandler: failed to parse form", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !s.validSignature(r) {
		slog.Warn("TwilioService.TwilioWebhookHandler: invalid signature", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	from := strings.TrimPrefix(r.PostForm.Get("From"), "whatsapp:")
	body := r.PostForm.Get("Body")
	now := time.Now().Unix()

	if status := r.PostForm.Get("MessageStatus"); status != "" && body == "" {
		to := strings.TrimPrefix(r.PostForm.Get("To"), "whatsapp:")
		s.emitReceipt(models.Receipt{To: to, Status: models.MessageStatus(status), Time: now})
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if from == "" || body == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		http.Error(w, "invalid sender", http.StatusBadRequest)
		return
	}

	slog.Debug("TwilioService.TwilioWebhookHandler: inbound message", "from", canonical, "length", len(body))
	s.emitResponse(models.Response{From: canonical, Body: body, Time: now})

	// Empty TwiML; the reply is sent asynchronously through the REST API.
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<Response></Response>"))
}

func (s *TwilioService) validSignature(r *http.Request) bool {
	if s.validator == nil {
		return true
	}
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	return s.validator.Validate(s.webhookURL, params, r.Header.Get(twilioSignatureHeader))
}

func (s *TwilioService) emitResponse(resp models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("TwilioService.emitResponse: service stopped, dropping message", "from", resp.From)
		return
	}
	select {
	case s.responses <- resp:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService.emitResponse: channel blocked, dropping message", "from", resp.From)
	}
}

func (s *TwilioService) emitReceipt(receipt models.Receipt) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService.emitReceipt: channel blocked, dropping receipt", "to", receipt.To)
	}
}
