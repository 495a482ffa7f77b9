package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ainotes/internal/metrics"
	"github.com/hitoshi/ainotes/internal/model"
	"github.com/hitoshi/ainotes/internal/repository"
)

// Processor は検証済みイベントをサブスクリプションのローカルミラーへ反映する。
type Processor struct {
	subs    repository.SubscriptionRepository
	events  repository.WebhookEventRepository
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewProcessor はProcessorを生成する。
// eventsがnilの場合は処理記録を残さない。
func NewProcessor(
	subs repository.SubscriptionRepository,
	events repository.WebhookEventRepository,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Processor {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		subs:    subs,
		events:  events,
		metrics: mc,
		logger:  logger,
		now:     time.Now,
	}
}

// Process はイベント種別に応じた処理を行い、処理結果を返す。
//   - created: レコードを作成する。同じ組が存在する場合は model.ErrDuplicateSubscription。
//   - updated / deleted: 状態を更新する。対象が無い場合は model.ErrRecordNotFound。
//   - trial_will_end / entitlement summary: 何もしない。
//   - 未知の種別: model.ErrUnhandledEventType。
func (p *Processor) Process(ctx context.Context, ev *Event) (model.WebhookEventOutcome, error) {
	start := p.now()

	outcome, err := p.apply(ctx, ev)

	p.metrics.RecordWebhookEvent(ev.Kind.String(), string(outcome))
	p.metrics.RecordWebhookLatency(p.now().Sub(start))
	p.record(ctx, ev, outcome, err)

	switch {
	case err == nil:
		p.logger.Info("webhook event processed",
			slog.String("event_id", ev.ID),
			slog.String("event_type", ev.Type),
			slog.String("outcome", string(outcome)),
		)
	case errors.Is(err, model.ErrUnhandledEventType):
		p.logger.Warn("unhandled webhook event type",
			slog.String("event_id", ev.ID),
			slog.String("event_type", ev.Type),
		)
	default:
		p.logger.Error("webhook event processing failed",
			slog.String("event_id", ev.ID),
			slog.String("event_type", ev.Type),
			slog.String("error", err.Error()),
		)
	}

	return outcome, err
}

func (p *Processor) apply(ctx context.Context, ev *Event) (model.WebhookEventOutcome, error) {
	switch ev.Kind {
	case EventSubscriptionCreated:
		sub, err := ev.subscription()
		if err != nil {
			return model.WebhookOutcomeFailed, err
		}
		if err := p.subs.InsertSubscription(ctx, subscriptionRecord(sub)); err != nil {
			return model.WebhookOutcomeFailed, fmt.Errorf("failed to apply %s: %w", ev.Type, err)
		}
		return model.WebhookOutcomeApplied, nil

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		sub, err := ev.subscription()
		if err != nil {
			return model.WebhookOutcomeFailed, err
		}
		status := model.SubscriptionStatus(sub.Status)
		if ev.Kind == EventSubscriptionDeleted && status == "" {
			status = model.SubscriptionStatusCanceled
		}
		if err := p.subs.UpdateSubscriptionStatus(ctx, sub.Customer.ID, sub.ID, status); err != nil {
			return model.WebhookOutcomeFailed, fmt.Errorf("failed to apply %s: %w", ev.Type, err)
		}
		return model.WebhookOutcomeApplied, nil

	case EventTrialWillEnd, EventEntitlementSummaryUpdated:
		return model.WebhookOutcomeIgnored, nil

	default:
		return model.WebhookOutcomeUnhandled, fmt.Errorf("%w: %s", model.ErrUnhandledEventType, ev.Type)
	}
}

// record は処理結果をイベントログに残す。失敗してもレスポンスは変えない。
func (p *Processor) record(ctx context.Context, ev *Event, outcome model.WebhookEventOutcome, procErr error) {
	if p.events == nil {
		return
	}
	entry := &model.WebhookEventLog{
		EventID:    ev.ID,
		EventType:  ev.Type,
		Outcome:    outcome,
		ReceivedAt: p.now(),
	}
	if procErr != nil {
		entry.Error = procErr.Error()
	}
	if err := p.events.Record(ctx, entry); err != nil {
		p.logger.Error("failed to record webhook event",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}
