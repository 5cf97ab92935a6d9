package dispatch

import (
	"context"
	"errors"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Config combines the settings the channel senders need.
type Config interface {
	config.WhatsAppConfig
	config.EmailConfig
	config.DispatchConfig
}

var errWhatsAppNotConfigured = errors.New("whatsapp channel not configured")

type unconfiguredSender struct {
	err error
}

func (s unconfiguredSender) Send(context.Context, Message) error {
	return s.err
}

// New builds a router with every channel registered from configuration.
func New(cfg Config, log *logger.Logger) *Router {
	router := NewRouter(Policy{
		Timeout:     cfg.GetDispatchTimeout(),
		MaxAttempts: cfg.GetDispatchMaxAttempts(),
		Backoff:     cfg.GetDispatchBackoff(),
	}, log)

	if wa := NewWhatsAppSender(cfg, log); wa != nil {
		router.Register(ChannelWhatsApp, wa)
	} else {
		if log != nil {
			log.Warn("WHATSAPP_URL not configured; whatsapp follow-ups will fail until it is set")
		}
		router.Register(ChannelWhatsApp, unconfiguredSender{err: errWhatsAppNotConfigured})
	}
	router.Register(ChannelEmail, NewEmailSender(cfg, log))
	router.Register(ChannelTask, NewTaskSender(log))
	return router
}
