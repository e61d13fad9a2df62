package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hongyan1215/money/internal/amqp"
	"github.com/hongyan1215/money/internal/bot"
	"github.com/hongyan1215/money/internal/cache"
	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/intent"
)

// Reply texts for inputs the engine could not act on. They are terminal:
// the event is acked either way, never retried, because retrying won't
// make the user's sentence clearer.
const (
	replyParseFailed    = "Sorry, I couldn't understand that. Try something like \"lunch 150\" or \"how much did I spend this month?\"."
	replyDispatchFailed = "Something went wrong on my side. Please try again in a moment."
)

// ReplyPublisher sends rendered reply text toward the chat gateway.
type ReplyPublisher interface {
	PublishReply(ctx context.Context, msg *amqp.ReplyMessage) error
}

// EventWorker processes inbound user events: dedup, parse, dispatch,
// reply. Delivery is at-least-once; the dedup cache makes processing
// effectively once per event id.
type EventWorker struct {
	dedup      *cache.DedupCache
	parser     intent.Parser
	dispatcher *bot.Dispatcher
	replies    ReplyPublisher
}

func NewEventWorker(dedup *cache.DedupCache, parser intent.Parser, dispatcher *bot.Dispatcher, replies ReplyPublisher) *EventWorker {
	return &EventWorker{
		dedup:      dedup,
		parser:     parser,
		dispatcher: dispatcher,
		replies:    replies,
	}
}

// HandleInboundEvent processes one delivery. A nil return acks the
// message. Only a failed reply publish returns an error (and un-marks
// the event id) so the redelivery can try again.
func (w *EventWorker) HandleInboundEvent(ctx context.Context, msg *amqp.InboundEventMessage) error {
	if msg.EventID != "" && w.dedup.Seen(msg.EventID) {
		slog.InfoContext(ctx, "Skipping redelivered event",
			"event_id", msg.EventID, "owner", msg.Owner)
		return nil
	}

	reply := w.process(ctx, msg)

	if err := w.replies.PublishReply(ctx, amqp.NewReplyMessage(msg.EventID, msg.Owner, reply)); err != nil {
		if msg.EventID != "" {
			w.dedup.Forget(msg.EventID)
		}
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

func (w *EventWorker) process(ctx context.Context, msg *amqp.InboundEventMessage) string {
	in, err := w.parse(ctx, msg)
	if err != nil {
		slog.WarnContext(ctx, "Failed to parse event",
			"event_id", msg.EventID, "owner", msg.Owner, "error", err)
		return replyParseFailed
	}

	reply, err := w.dispatcher.Dispatch(ctx, msg.Owner, in)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dispatch intent",
			"event_id", msg.EventID, "owner", msg.Owner, "error", err)
		return replyDispatchFailed
	}
	return reply
}

func (w *EventWorker) parse(ctx context.Context, msg *amqp.InboundEventMessage) (core.Intent, error) {
	if len(msg.Image) > 0 {
		return w.parser.ParseReceipt(ctx, msg.Image)
	}
	return w.parser.ParseText(ctx, msg.Text)
}
