// Package audit mirrors engine events to the external operator sink.
// Delivery is fire-and-forget: a dead sink never affects or rolls back a
// ranked transaction.
package audit

import (
	"encoding/json"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/config"
	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type Emitter interface {
	Emit(event domain.Event)
}

// New picks the webhook emitter when a sink URL is configured, otherwise a
// no-op.
func New(cfg *config.Config, logger zerolog.Logger) Emitter {
	if cfg.AuditSinkURL == "" {
		logger.Info().Msg("audit sink not configured, events disabled")
		return NopEmitter{}
	}
	return &WebhookEmitter{
		url: cfg.AuditSinkURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.AuditSinkTimeout,
			WriteTimeout:        constants.AuditSinkTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

type WebhookEmitter struct {
	url    string
	client *fasthttp.Client
	logger zerolog.Logger
}

func (e *WebhookEmitter) Emit(event domain.Event) {
	go e.deliver(event)
}

func (e *WebhookEmitter) deliver(event domain.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("failed to encode audit event")
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(e.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := e.client.DoTimeout(req, resp, constants.AuditSinkTimeout); err != nil {
		e.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("audit event delivery failed")
		return
	}
	if resp.StatusCode() >= 300 {
		e.logger.Warn().
			Int("status", resp.StatusCode()).
			Str("type", string(event.Type)).
			Msg("audit sink rejected event")
	}
}

type NopEmitter struct{}

func (NopEmitter) Emit(domain.Event) {}
