package reservation

import (
    "context"
    "fmt"
    "log"

    "github.com/iliyamo/idea-marketplace/internal/gateway"
    "github.com/iliyamo/idea-marketplace/internal/metrics"
    "github.com/iliyamo/idea-marketplace/internal/model"
)

// PayoutNotifier announces a confirmed sale to the external payout
// workflow (message queue). Failures are logged, never propagated: the
// payout row in the ledger is the durable record, the event is a nudge.
type PayoutNotifier interface {
    PublishPayoutRequested(ctx context.Context, ideaID string, sellerID uint64) error
}

// Verifier authenticates and decodes a raw webhook delivery.
type Verifier interface {
    ParseEvent(payload []byte, sigHeader string) (*gateway.Event, error)
}

// Reconciler applies asynchronous gateway events to the ledger. The
// provider delivers at-least-once with no ordering guarantee, so every
// path here must be idempotent and terminal states are sticky: once a
// payment succeeded, failed or was canceled, later events are
// acknowledged but change nothing.
type Reconciler struct {
    ledger  Ledger
    ver     Verifier
    notif   PayoutNotifier
    feed    FeedInvalidator
}

// NewReconciler constructs a Reconciler. notif and feed may be nil.
func NewReconciler(ledger Ledger, ver Verifier, notif PayoutNotifier, feed FeedInvalidator) *Reconciler {
    if ledger == nil || ver == nil {
        panic("nil dependency passed to NewReconciler")
    }
    return &Reconciler{ledger: ledger, ver: ver, notif: notif, feed: feed}
}

// HandleEvent verifies and applies one webhook delivery. It returns
// gateway.ErrInvalidSignature for unauthenticated payloads (the sender
// retries per its own policy); any other outcome, including events for
// unknown intents or unrecognized types, is acknowledged so the provider
// stops redelivering.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
    ev, err := r.ver.ParseEvent(payload, sigHeader)
    if err != nil {
        metrics.WebhookEventsTotal.WithLabelValues("invalid", "rejected").Inc()
        return err
    }

    switch ev.Kind {
    case gateway.EventIntentSucceeded:
        return r.applySucceeded(ctx, ev)

    case gateway.EventIntentCanceled:
        return r.transition(ctx, ev, model.PaymentCanceled)
    case gateway.EventIntentFailed:
        return r.transition(ctx, ev, model.PaymentFailed)
    case gateway.EventIntentProcessing:
        return r.transition(ctx, ev, model.PaymentProcessing)
    case gateway.EventIntentRequiresAction:
        return r.transition(ctx, ev, model.PaymentRequiresAction)

    case gateway.EventUnrecognized:
        // Forward compatibility: acknowledge types this version does not
        // know so the provider does not retry them forever.
        log.Printf("webhook: ignoring unrecognized event type %q (%s)", ev.WireType, ev.ID)
        metrics.WebhookEventsTotal.WithLabelValues("unrecognized", "ignored").Inc()
        return nil
    }
    return nil
}

// applySucceeded finalizes the sale. The metadata attached at intent
// creation identifies the idea and both parties; without it the event
// cannot be applied and is dropped with a log line (the ledger row, if
// any, will be reclaimed by the sweeper).
func (r *Reconciler) applySucceeded(ctx context.Context, ev *gateway.Event) error {
    md := ev.Metadata
    if md.IdeaID == "" || md.BuyerID == 0 {
        log.Printf("webhook: succeeded event %s has no reservation metadata, dropping", ev.ID)
        metrics.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "dropped").Inc()
        return nil
    }

    applied, err := r.ledger.FinalizeSale(ctx, ev.Intent.ID, md.IdeaID, md.BuyerID, md.SellerID, ev.OccurredAt)
    if err != nil {
        metrics.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "error").Inc()
        return fmt.Errorf("finalize sale for %s: %w", ev.Intent.ID, err)
    }
    if !applied {
        // Duplicate delivery or an already-terminal payment.
        metrics.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "noop").Inc()
        return nil
    }

    metrics.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "applied").Inc()
    if r.notif != nil {
        if err := r.notif.PublishPayoutRequested(ctx, md.IdeaID, md.SellerID); err != nil {
            log.Printf("webhook: payout event for idea %s not published: %v", md.IdeaID, err)
        }
    }
    if r.feed != nil {
        r.feed.InvalidateIdeasFeed(ctx)
    }
    return nil
}

// transition mirrors a lifecycle event onto the payment row. Missing
// rows and terminal rows are acknowledged as no-ops.
func (r *Reconciler) transition(ctx context.Context, ev *gateway.Event, status model.PaymentStatus) error {
    applied, err := r.ledger.TransitionStatus(ctx, ev.Intent.ID, status)
    if err != nil {
        metrics.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "error").Inc()
        return fmt.Errorf("transition %s to %s: %w", ev.Intent.ID, status, err)
    }
    outcome := "applied"
    if !applied {
        outcome = "noop"
    }
    metrics.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), outcome).Inc()

    // A canceled or failed payment stops blocking the idea (the active
    // uniqueness blanks out), so the feed changes.
    if applied && status.Terminal() && r.feed != nil {
        r.feed.InvalidateIdeasFeed(ctx)
    }
    return nil
}
