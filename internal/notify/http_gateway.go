package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

// HTTPGateway posts envelopes to the mailer service.
type HTTPGateway struct {
	client *resty.Client
	logger *zap.Logger
}

func NewHTTPGateway(baseURL string, logger *zap.Logger, opts ...func(*resty.Client)) *HTTPGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(client)
	}
	return &HTTPGateway{client: client, logger: logger}
}

func (g *HTTPGateway) Notify(ctx context.Context, kind model.MessageKind, address string, data map[string]any) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(newEnvelope(kind, address, data)).
		Post("/notifications")
	if err != nil {
		return fmt.Errorf("post %s notification: %w", kind, err)
	}
	if resp.IsError() {
		g.logger.Warn("mailer rejected notification",
			zap.String("kind", string(kind)),
			zap.Int("status", resp.StatusCode()),
		)
		return fmt.Errorf("mailer returned %s", resp.Status())
	}
	return nil
}
