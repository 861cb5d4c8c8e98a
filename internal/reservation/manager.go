package reservation

import (
    "context"
    "errors"
    "fmt"
    "log"
    "math"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/idea-marketplace/internal/gateway"
    "github.com/iliyamo/idea-marketplace/internal/metrics"
    "github.com/iliyamo/idea-marketplace/internal/model"
    "github.com/iliyamo/idea-marketplace/internal/utils"
)

// FeedInvalidator drops cached marketplace feed responses after a
// mutation changes which ideas are for sale. A nil invalidator disables
// invalidation (the cache then ages out on its own TTL).
type FeedInvalidator interface {
    InvalidateIdeasFeed(ctx context.Context)
}

// Manager opens and closes purchase reservations. It is stateless: all
// shared state lives in the Ledger and every exclusivity decision is
// settled by the ledger's storage-level constraints, so any number of
// Manager instances can run concurrently against the same database.
type Manager struct {
    ledger   Ledger
    gw       gateway.Client
    currency string
    feed     FeedInvalidator
}

// NewManager constructs a Manager. currency is the marketplace currency
// code used for every intent (e.g. "usd"). feed may be nil.
func NewManager(ledger Ledger, gw gateway.Client, currency string, feed FeedInvalidator) *Manager {
    if ledger == nil || gw == nil {
        panic("nil dependency passed to NewManager")
    }
    return &Manager{ledger: ledger, gw: gw, currency: currency, feed: feed}
}

// CreateReservation opens a reservation for the buyer on the given idea
// and returns the client secret the buyer uses to complete the payment
// directly with the gateway.
//
// Calling it again for a reservation the same buyer already holds
// returns the existing intent's secret, so a client that lost the
// original response can retry safely. Conflicts surface as ErrIdeaBusy
// (someone else's payment is in flight) or ErrUnresolvedPaymentExists
// (this buyer has a different payment in flight).
//
// The gateway call happens before the local insert and outside any
// transaction; the insert is the commit point. A gateway failure
// therefore leaves no local state behind, while a local failure after a
// successful gateway call leaves only an orphaned external intent that
// nobody will ever complete.
func (m *Manager) CreateReservation(ctx context.Context, ideaID string, buyer *model.User) (string, error) {
    if !utils.ValidIdeaID(ideaID) {
        return "", ErrInvalidIdeaID
    }

    active, err := m.ledger.ActivePaymentByIdea(ctx, ideaID)
    if err != nil {
        return "", fmt.Errorf("check idea reservation: %w", err)
    }
    if active != nil {
        if active.UserID == buyer.ID {
            // Idempotent retry: hand back the same checkout session.
            intent, err := m.gw.RetrieveIntent(ctx, active.ID)
            if err != nil {
                return "", fmt.Errorf("retrieve existing intent: %w", err)
            }
            return intent.ClientSecret, nil
        }
        metrics.ReservationsTotal.WithLabelValues("conflict").Inc()
        return "", ErrIdeaBusy
    }

    own, err := m.ledger.ActivePaymentByBuyer(ctx, buyer.ID)
    if err != nil {
        return "", fmt.Errorf("check buyer payments: %w", err)
    }
    if own != nil {
        metrics.ReservationsTotal.WithLabelValues("conflict").Inc()
        return "", ErrUnresolvedPaymentExists
    }

    idea, err := m.ledger.GetIdea(ctx, ideaID)
    if err != nil {
        return "", err
    }
    if idea.Sold() {
        return "", ErrIdeaAlreadySold
    }

    intent, err := m.gw.CreateIntent(ctx, gateway.CreateIntentInput{
        Amount:         priceCents(idea.Price),
        Currency:       m.currency,
        ReceiptEmail:   buyer.Email,
        Description:    "Idea Marketplace - selling the idea: " + idea.Title,
        IdempotencyKey: uuid.NewString(),
        Metadata: gateway.IntentMetadata{
            IdeaID:   idea.ID,
            SellerID: idea.SellerID,
            BuyerID:  buyer.ID,
        },
    })
    if err != nil {
        metrics.ReservationsTotal.WithLabelValues("gateway_error").Inc()
        return "", fmt.Errorf("create intent: %w", err)
    }

    p := &model.Payment{
        ID:       intent.ID,
        IdeaID:   idea.ID,
        UserID:   buyer.ID,
        Amount:   intent.Amount,
        Currency: intent.Currency,
        Status:   statusFromIntent(intent.Status),
    }
    if err := m.ledger.InsertReservation(ctx, p); err != nil {
        if errors.Is(err, ErrIdeaBusy) || errors.Is(err, ErrUnresolvedPaymentExists) {
            // Lost the race after the gateway round trip. Release the
            // intent we just opened; the winner's reservation stands.
            m.cancelIntentQuietly(ctx, intent.ID)
            metrics.ReservationsTotal.WithLabelValues("conflict").Inc()
            return "", err
        }
        return "", fmt.Errorf("insert reservation: %w", err)
    }

    metrics.ReservationsTotal.WithLabelValues("opened").Inc()
    m.invalidateFeed(ctx)
    return intent.ClientSecret, nil
}

// CancelReservation explicitly abandons the idea's in-flight payment and
// returns the idea to sale. Succeeded payments cannot be canceled.
func (m *Manager) CancelReservation(ctx context.Context, ideaID string) error {
    if !utils.ValidIdeaID(ideaID) {
        return ErrInvalidIdeaID
    }
    p, err := m.ledger.PaymentByIdea(ctx, ideaID)
    if err != nil {
        return fmt.Errorf("lookup payment: %w", err)
    }
    if p == nil {
        return ErrPaymentNotFound
    }
    if p.Status == model.PaymentSucceeded {
        return ErrPaymentNotCancelable
    }

    if err := m.gw.CancelIntent(ctx, p.ID); err != nil {
        if !errors.Is(err, gateway.ErrAlreadyCanceled) && !errors.Is(err, gateway.ErrIntentNotFound) {
            // The intent may still complete; keep the local reservation
            // so the webhook (or the sweeper) resolves it.
            return fmt.Errorf("cancel intent: %w", err)
        }
    }

    if err := m.ledger.DeletePayment(ctx, p.ID); err != nil {
        return fmt.Errorf("delete payment: %w", err)
    }
    metrics.ReservationsTotal.WithLabelValues("canceled").Inc()
    m.invalidateFeed(ctx)
    return nil
}

// ReservationSecret returns the client secret of the buyer's own
// in-flight reservation, so a resumed session can finish checkout.
func (m *Manager) ReservationSecret(ctx context.Context, buyerID uint64) (string, error) {
    p, err := m.ledger.ActivePaymentByBuyer(ctx, buyerID)
    if err != nil {
        return "", fmt.Errorf("lookup buyer payment: %w", err)
    }
    if p == nil {
        return "", ErrPaymentNotFound
    }
    intent, err := m.gw.RetrieveIntent(ctx, p.ID)
    if err != nil {
        return "", fmt.Errorf("retrieve intent: %w", err)
    }
    return intent.ClientSecret, nil
}

// ReclaimStale cancels and removes reservations older than the grace
// window that never resolved, returning their ideas to sale. It is the
// sweep body run by the background worker.
//
// The gateway cancel is best effort: the provider may have expired the
// intent already, or be unreachable — local state still advances. The
// local delete re-checks the row under lock, so a reservation that
// succeeded after the scan is never reclaimed. One row's failure does
// not stop the sweep of the others.
func (m *Manager) ReclaimStale(ctx context.Context, grace time.Duration) (int, error) {
    cutoff := time.Now().UTC().Add(-grace)
    stale, err := m.ledger.StalePayments(ctx, cutoff)
    if err != nil {
        return 0, fmt.Errorf("scan stale payments: %w", err)
    }

    reclaimed := 0
    for _, p := range stale {
        m.cancelIntentQuietly(ctx, p.ID)

        ok, err := m.ledger.ReclaimIfStale(ctx, p.ID, cutoff)
        if err != nil {
            log.Printf("sweeper: reclaim %s failed: %v", p.ID, err)
            continue
        }
        if ok {
            reclaimed++
        }
    }
    if reclaimed > 0 {
        metrics.SweepReclaimedTotal.Add(float64(reclaimed))
        m.invalidateFeed(ctx)
    }
    return reclaimed, nil
}

// cancelIntentQuietly issues a compensating cancel and only logs
// failures. AlreadyCanceled and NotFound count as success since the
// gateway is the source of truth and may have expired the intent first.
func (m *Manager) cancelIntentQuietly(ctx context.Context, intentID string) {
    err := m.gw.CancelIntent(ctx, intentID)
    if err != nil && !errors.Is(err, gateway.ErrAlreadyCanceled) && !errors.Is(err, gateway.ErrIntentNotFound) {
        log.Printf("gateway: cancel intent %s failed: %v", intentID, err)
    }
}

func (m *Manager) invalidateFeed(ctx context.Context) {
    if m.feed != nil {
        m.feed.InvalidateIdeasFeed(ctx)
    }
}

// priceCents converts a decimal listing price to the smallest currency
// unit the gateway expects.
func priceCents(price float64) int64 {
    return int64(math.Round(price * 100))
}

// statusFromIntent maps a provider intent status string onto the local
// payment status enum. Freshly created intents report a
// requires_payment_method style status, which is simply "created" here.
func statusFromIntent(s string) model.PaymentStatus {
    switch s {
    case "requires_action":
        return model.PaymentRequiresAction
    case "processing":
        return model.PaymentProcessing
    case "succeeded":
        return model.PaymentSucceeded
    case "canceled":
        return model.PaymentCanceled
    default:
        return model.PaymentCreated
    }
}
