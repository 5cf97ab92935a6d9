package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// WhatsAppSender posts messages to a WhatsApp-compatible send API.
type WhatsAppSender struct {
	baseURL  string
	apiKey   string
	deviceID string
	region   string
	http     *http.Client
	log      *logger.Logger
}

type sendMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewWhatsAppSender returns nil when no API URL is configured. The router
// enforces per-attempt timeouts through the request context.
func NewWhatsAppSender(cfg config.WhatsAppConfig, log *logger.Logger) *WhatsAppSender {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}

	return &WhatsAppSender{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		region:   cfg.GetPhoneDefaultRegion(),
		http:     &http.Client{},
		log:      log,
	}
}

// Send posts {to, message}. Success needs a 2xx whose body does not say
// success=false.
func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	to := phone.Destination(msg.To.Phone, s.region)
	if to == "" {
		return ErrMissingDestination
	}

	body, err := json.Marshal(sendMessageRequest{To: to, Message: msg.Body})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/send/message", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(s.apiKey))
	}
	if s.deviceID != "" {
		req.Header.Set("X-Device-Id", s.deviceID)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(data)), maxErrorBody)}
	}

	var parsed sendMessageResponse
	if len(bytes.TrimSpace(data)) > 0 && json.Unmarshal(data, &parsed) == nil {
		if parsed.Success != nil && !*parsed.Success {
			reason := parsed.Error
			if reason == "" {
				reason = parsed.Message
			}
			if reason == "" {
				reason = "send rejected"
			}
			return fmt.Errorf("whatsapp send rejected: %s", reason)
		}
	}

	s.log.Info("whatsapp sent", "to", to, "executionId", msg.ExecutionID)
	return nil
}

func formatAuthHeader(apiKey string) string {
	lower := strings.ToLower(apiKey)
	if strings.HasPrefix(lower, "basic ") || strings.HasPrefix(lower, "bearer ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
