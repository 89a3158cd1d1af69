// Package notify hands staged messages to the delivery services. Template
// rendering and the transport itself live behind the gateway.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/queue"
)

type Gateway interface {
	Notify(ctx context.Context, kind model.MessageKind, address string, data map[string]any) error
}

// Envelope is what every gateway puts on the wire.
type Envelope struct {
	Kind    model.MessageKind `json:"kind"`
	Address string            `json:"address"`
	Data    map[string]any    `json:"data"`
	SentAt  time.Time         `json:"sent_at"`
}

func newEnvelope(kind model.MessageKind, address string, data map[string]any) Envelope {
	return Envelope{Kind: kind, Address: address, Data: data, SentAt: time.Now().UTC()}
}

// Topic is the queue topic a message kind is published on.
func Topic(kind model.MessageKind) string {
	return "notifications." + string(kind)
}

// QueueGateway publishes envelopes for the mail and SMS consumers.
type QueueGateway struct {
	Queue queue.Queue
}

func (g *QueueGateway) Notify(ctx context.Context, kind model.MessageKind, address string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.Queue.Publish(Topic(kind), newEnvelope(kind, address, data)); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

// LogGateway only logs. Used in development.
type LogGateway struct {
	Logger *zap.Logger
}

func (g *LogGateway) Notify(ctx context.Context, kind model.MessageKind, address string, data map[string]any) error {
	g.Logger.Info("notification",
		zap.String("kind", string(kind)),
		zap.String("address", address),
		zap.Any("data", data),
	)
	return nil
}

var (
	_ Gateway = (*QueueGateway)(nil)
	_ Gateway = (*LogGateway)(nil)
	_ Gateway = (*HTTPGateway)(nil)
)
