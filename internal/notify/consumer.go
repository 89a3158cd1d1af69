package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/queue"
)

// Kinds lists every message kind the scheduler publishes.
var Kinds = []model.MessageKind{
	model.MessageKindInvite,
	model.MessageKindReminder,
	model.MessageKindReport,
	model.MessageKindQuotaWarning,
}

// Forward subscribes to the topic of every kind and hands each envelope to
// sink. A sink error is returned to the queue so it can redeliver.
func Forward(q queue.Queue, sink Gateway, logger *zap.Logger) error {
	for _, kind := range Kinds {
		topic := Topic(kind)
		err := q.Subscribe(topic, func(payload any) error {
			env, err := decodeEnvelope(payload)
			if err != nil {
				// undecodable payloads will never succeed, drop them
				logger.Error("dropping malformed envelope", zap.String("topic", topic), zap.Error(err))
				return nil
			}
			return sink.Notify(context.Background(), env.Kind, env.Address, env.Data)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func decodeEnvelope(payload any) (Envelope, error) {
	switch p := payload.(type) {
	case Envelope:
		return p, nil
	case *Envelope:
		return *p, nil
	case []byte:
		var env Envelope
		err := json.Unmarshal(p, &env)
		return env, err
	default:
		return Envelope{}, fmt.Errorf("unexpected payload %T", payload)
	}
}
