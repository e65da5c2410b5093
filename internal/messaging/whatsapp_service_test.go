package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/whatsapp"
)

var _ Service = (*WhatsAppService)(nil)

func str(s string) *string { return &s }

func TestWhatsAppServiceSendMessageEmitsReceipt(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	require.NoError(t, svc.SendMessage(context.Background(), "+52 1 555 000 1", "hola"))

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "5215550001", sent[0].To)

	select {
	case receipt := <-svc.Receipts():
		assert.Equal(t, "5215550001", receipt.To)
		assert.Equal(t, models.MessageStatusSent, receipt.Status)
	default:
		t.Fatal("expected a sent receipt")
	}
}

func TestWhatsAppServiceSendMessageErrors(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	assert.Error(t, svc.SendMessage(context.Background(), "123", "hola"))

	mock.Err = errors.New("socket closed")
	assert.ErrorContains(t, svc.SendMessage(context.Background(), "5215550001", "hola"), "socket closed")
	assert.Empty(t, svc.Receipts())
}

func TestWhatsAppServiceStartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())

	_, ok := <-svc.Receipts()
	assert.False(t, ok)
	_, ok = <-svc.Responses()
	assert.False(t, ok)

	assert.ErrorIs(t, svc.SendMessage(context.Background(), "5215550001", "hola"), ErrServiceStopped)
	// Events arriving after Stop must not panic on the closed channel.
	svc.emitResponse(models.Response{From: "5215550001", Body: "hola"})
}

func TestResponseFromMessage(t *testing.T) {
	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	info := types.MessageInfo{
		MessageSource: types.MessageSource{Sender: types.NewJID("5215550001", types.DefaultUserServer)},
		Timestamp:     ts,
	}

	resp, ok := responseFromMessage(&events.Message{Info: info, Message: &waE2E.Message{Conversation: str("hola")}})
	require.True(t, ok)
	assert.Equal(t, models.Response{From: "5215550001", Body: "hola", Time: ts.Unix()}, resp)

	extended := &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: str("me siento mejor")}}
	resp, ok = responseFromMessage(&events.Message{Info: info, Message: extended})
	require.True(t, ok)
	assert.Equal(t, "me siento mejor", resp.Body)

	_, ok = responseFromMessage(&events.Message{Info: info, Message: &waE2E.Message{}})
	assert.False(t, ok)

	own := info
	own.IsFromMe = true
	_, ok = responseFromMessage(&events.Message{Info: own, Message: &waE2E.Message{Conversation: str("hola")}})
	assert.False(t, ok)
}

func TestReceiptFromEvent(t *testing.T) {
	src := types.MessageSource{Chat: types.NewJID("5215550001", types.DefaultUserServer)}

	r, ok := receiptFromEvent(&events.Receipt{MessageSource: src, Type: types.ReceiptTypeRead})
	require.True(t, ok)
	assert.Equal(t, models.MessageStatusRead, r.Status)
	assert.Equal(t, "5215550001", r.To)

	_, ok = receiptFromEvent(&events.Receipt{MessageSource: src, Type: types.ReceiptTypeReadSelf})
	assert.False(t, ok)
}
