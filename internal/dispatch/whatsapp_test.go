package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannelConfig struct {
	url, key, device string
}

func (s stubChannelConfig) GetWhatsAppURL() string        { return s.url }
func (s stubChannelConfig) GetWhatsAppKey() string        { return s.key }
func (s stubChannelConfig) GetWhatsAppDeviceID() string   { return s.device }
func (s stubChannelConfig) GetPhoneDefaultRegion() string { return "BR" }
func (s stubChannelConfig) GetSMTPHost() string           { return "" }
func (s stubChannelConfig) GetSMTPPort() int              { return 587 }
func (s stubChannelConfig) GetSMTPUsername() string       { return "" }
func (s stubChannelConfig) GetSMTPPassword() string       { return "" }
func (s stubChannelConfig) GetEmailFromName() string      { return "" }
func (s stubChannelConfig) GetEmailFromAddress() string   { return "" }
func (s stubChannelConfig) IsEmailEnabled() bool          { return false }

func TestWhatsAppSenderPostsNormalizedDestination(t *testing.T) {
	var got sendMessageRequest
	var auth, device string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send/message", r.URL.Path)
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	sender := NewWhatsAppSender(stubChannelConfig{url: srv.URL + "/", key: "user:pass", device: "dev-1"}, nil)
	err := sender.Send(context.Background(), Message{
		Channel: ChannelWhatsApp,
		To:      Recipient{Phone: "(11) 98765-4321"},
		Body:    "Olá Ana",
	})

	require.NoError(t, err)
	assert.Equal(t, "5511987654321", got.To)
	assert.Equal(t, "Olá Ana", got.Message)
	assert.Equal(t, "Basic dXNlcjpwYXNz", auth)
	assert.Equal(t, "dev-1", device)
}

func TestWhatsAppSenderFailures(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"success flag false", http.StatusOK, `{"success":false,"error":"not on whatsapp"}`, false},
		{"client error", http.StatusBadRequest, `invalid`, false},
		{"server error", http.StatusBadGateway, `upstream`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			sender := NewWhatsAppSender(stubChannelConfig{url: srv.URL}, nil)
			err := sender.Send(context.Background(), Message{To: Recipient{Phone: "+5511987654321"}, Body: "oi"})
			require.Error(t, err)
			assert.Equal(t, tc.retryable, Retryable(err))
		})
	}
}

func TestWhatsAppSenderPlainOKBodyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sent"))
	}))
	defer srv.Close()

	sender := NewWhatsAppSender(stubChannelConfig{url: srv.URL}, nil)
	assert.NoError(t, sender.Send(context.Background(), Message{To: Recipient{Phone: "+5511987654321"}}))
}

func TestWhatsAppSenderMissingPhone(t *testing.T) {
	sender := NewWhatsAppSender(stubChannelConfig{url: "http://unused"}, nil)
	err := sender.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrMissingDestination)
}

func TestEmailSenderUnconfiguredIsNoop(t *testing.T) {
	sender := NewEmailSender(stubChannelConfig{}, nil)

	assert.NoError(t, sender.Send(context.Background(), Message{To: Recipient{Email: "ana@example.com"}}))
	assert.ErrorIs(t, sender.Send(context.Background(), Message{}), ErrMissingDestination)
}

func TestRenderFollowupEmailEscapesContent(t *testing.T) {
	html, err := renderFollowupEmail("Oi", "Primeiro <b>parágrafo</b>\n\nSegundo")
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;b&gt;")
	assert.Contains(t, html, "<p style=\"margin: 0 0 16px;\">Segundo</p>")
}
