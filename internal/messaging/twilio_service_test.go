package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/twiliowhatsapp"
)

var _ Service = (*TwilioService)(nil)

func postForm(h http.HandlerFunc, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(twilioSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// sign computes the X-Twilio-Signature value for a form post.
func sign(token, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(webhookURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioServiceCanonicalize(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	got, err := svc.ValidateAndCanonicalizeRecipient("whatsapp:+52 1 555-000-1")
	require.NoError(t, err)
	assert.Equal(t, "5215550001", got)

	_, err = svc.ValidateAndCanonicalizeRecipient("whatsapp:")
	assert.Error(t, err)
}

func TestTwilioServiceSendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	require.NoError(t, svc.SendMessage(context.Background(), "+5215550001", "hola"))
	require.Len(t, mock.Sent(), 1)
	receipt := <-svc.Receipts()
	assert.Equal(t, models.MessageStatusSent, receipt.Status)

	require.NoError(t, svc.Stop())
	assert.ErrorIs(t, svc.SendMessage(context.Background(), "+5215550001", "hola"), ErrServiceStopped)
}

func TestTwilioWebhookForwardsMessage(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	form := url.Values{"From": {"whatsapp:+5215550001"}, "Body": {"hola"}}

	rec := postForm(svc.TwilioWebhookHandler, form, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response>")

	resp := <-svc.Responses()
	assert.Equal(t, "5215550001", resp.From)
	assert.Equal(t, "hola", resp.Body)
}

func TestTwilioWebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	rec := postForm(svc.TwilioWebhookHandler, url.Values{"From": {"whatsapp:+5215550001"}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTwilioWebhookStatusCallback(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	form := url.Values{"To": {"whatsapp:+5215550001"}, "MessageStatus": {"delivered"}}

	rec := postForm(svc.TwilioWebhookHandler, form, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	receipt := <-svc.Receipts()
	assert.Equal(t, models.MessageStatusDelivered, receipt.Status)
	assert.Equal(t, "+5215550001", receipt.To)
}

func TestTwilioWebhookSignature(t *testing.T) {
	const token = "twilio-auth-token"
	const hook = "https://lumi.example.com/webhook/twilio"
	svc := NewTwilioService(twiliowhatsapp.NewMockClient(), WithWebhookValidation(token, hook))
	form := url.Values{"From": {"whatsapp:+5215550001"}, "Body": {"hola"}}

	rec := postForm(svc.TwilioWebhookHandler, form, "bogus")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postForm(svc.TwilioWebhookHandler, form, sign(token, hook, form))
	assert.Equal(t, http.StatusOK, rec.Code)
}
