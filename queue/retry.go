package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/middleware"
)

// transientClassifier retries only errors tagged transient; anything else
// fails immediately.
type transientClassifier struct{}

func (transientClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case errdefs.IsTransient(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// Retrying wraps a handler with bounded exponential backoff and a
// dead-letter path. Transient failures are retried maxAttempts times; when
// the budget is exhausted, or the error is not retryable at all, the raw
// message is parked on the queue's dead-letter channel and the original
// delivery acknowledged, so one poison message cannot wedge the consumer.
func Retrying(h Handler, pub Publisher, maxAttempts int, backoff time.Duration, logger *zap.Logger) Handler {
	return func(ctx context.Context, msg Message) error {
		r := retrier.New(retrier.ExponentialBackoff(maxAttempts, backoff), transientClassifier{})
		err := r.RunCtx(ctx, func(ctx context.Context) error {
			return h(ctx, msg)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// Shutting down; leave the message for redelivery.
			return err
		}

		dlq := DeadLetter(msg.Queue)
		if pubErr := pub.Publish(ctx, dlq, msg.Key, json.RawMessage(msg.Value)); pubErr != nil {
			logger.Error("Dead-letter publish failed, leaving message unacknowledged",
				zap.String("queue", msg.Queue),
				zap.Error(pubErr),
			)
			return err
		}

		middleware.DeadLetteredTotal.WithLabelValues(msg.Queue).Inc()
		logger.Warn("Message dead-lettered",
			zap.String("queue", msg.Queue),
			zap.String("dlq", dlq),
			zap.String("key", msg.Key),
			zap.Error(err),
		)
		return nil
	}
}
