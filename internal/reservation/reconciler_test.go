package reservation

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/idea-marketplace/internal/gateway"
    "github.com/iliyamo/idea-marketplace/internal/model"
)

// stubVerifier hands back a canned event, or an error. Signature
// mechanics themselves are covered by the gateway package tests.
type stubVerifier struct {
    ev  *gateway.Event
    err error
}

func (s *stubVerifier) ParseEvent(payload []byte, sigHeader string) (*gateway.Event, error) {
    return s.ev, s.err
}

type recordingNotifier struct {
    mu     sync.Mutex
    events []string
    err    error
}

func (n *recordingNotifier) PublishPayoutRequested(ctx context.Context, ideaID string, sellerID uint64) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    if n.err != nil {
        return n.err
    }
    n.events = append(n.events, ideaID)
    return nil
}

func succeededEvent(intentID, ideaID string, buyerID, sellerID uint64) *gateway.Event {
    return &gateway.Event{
        ID:         "evt_" + intentID,
        Kind:       gateway.EventIntentSucceeded,
        WireType:   "payment_intent.succeeded",
        OccurredAt: time.Now().UTC(),
        Intent:     gateway.Intent{ID: intentID, Status: "succeeded"},
        Metadata:   gateway.IntentMetadata{IdeaID: ideaID, SellerID: sellerID, BuyerID: buyerID},
    }
}

func lifecycleEvent(intentID string, kind gateway.EventKind, wire string) *gateway.Event {
    return &gateway.Event{
        ID:         "evt_" + intentID,
        Kind:       kind,
        WireType:   wire,
        OccurredAt: time.Now().UTC(),
        Intent:     gateway.Intent{ID: intentID},
    }
}

// reserve seeds the ledger with an idea and an open reservation on it.
func reserve(t *testing.T, ledger *fakeLedger, id string, buyerID, sellerID uint64) {
    t.Helper()
    ledger.addIdea(testIdea(id, sellerID, 100.00))
    require.NoError(t, ledger.InsertReservation(context.Background(), &model.Payment{
        ID:       "pi_1",
        IdeaID:   id,
        UserID:   buyerID,
        Amount:   10000,
        Currency: "usd",
        Status:   model.PaymentCreated,
    }))
}

func TestHandleEvent_SucceededFinalizesSale(t *testing.T) {
    ledger := newFakeLedger()
    id := ideaID("a1")
    reserve(t, ledger, id, 42, 7)
    notif := &recordingNotifier{}
    ver := &stubVerifier{ev: succeededEvent("pi_1", id, 42, 7)}

    r := NewReconciler(ledger, ver, notif, nil)
    require.NoError(t, r.HandleEvent(context.Background(), nil, ""))

    idea, err := ledger.GetIdea(context.Background(), id)
    require.NoError(t, err)
    require.NotNil(t, idea.BuyerID)
    assert.Equal(t, uint64(42), *idea.BuyerID)

    p, err := ledger.PaymentByIdea(context.Background(), id)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentSucceeded, p.Status)
    assert.Equal(t, []string{id}, notif.events)
    require.Len(t, ledger.payouts, 1)
    assert.Equal(t, uint64(7), ledger.payouts[0].UserID)
}

func TestHandleEvent_SucceededReplayIsIdempotent(t *testing.T) {
    ledger := newFakeLedger()
    id := ideaID("a1")
    reserve(t, ledger, id, 42, 7)
    notif := &recordingNotifier{}
    ver := &stubVerifier{ev: succeededEvent("pi_1", id, 42, 7)}

    r := NewReconciler(ledger, ver, notif, nil)
    require.NoError(t, r.HandleEvent(context.Background(), nil, ""))
    require.NoError(t, r.HandleEvent(context.Background(), nil, ""))
    require.NoError(t, r.HandleEvent(context.Background(), nil, ""))

    assert.Len(t, notif.events, 1, "a redelivered success must not pay the seller twice")
    assert.Len(t, ledger.payouts, 1)
}

func TestHandleEvent_CanceledAfterSucceededIsNoop(t *testing.T) {
    ledger := newFakeLedger()
    id := ideaID("a1")
    reserve(t, ledger, id, 42, 7)

    succ := &stubVerifier{ev: succeededEvent("pi_1", id, 42, 7)}
    require.NoError(t, NewReconciler(ledger, succ, nil, nil).HandleEvent(context.Background(), nil, ""))

    // A stale cancellation arrives after the sale closed.
    late := &stubVerifier{ev: lifecycleEvent("pi_1", gateway.EventIntentCanceled, "payment_intent.canceled")}
    require.NoError(t, NewReconciler(ledger, late, nil, nil).HandleEvent(context.Background(), nil, ""))

    p, err := ledger.PaymentByIdea(context.Background(), id)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentSucceeded, p.Status, "terminal states are sticky")
}

func TestHandleEvent_ProcessingAfterSucceededIsNoop(t *testing.T) {
    ledger := newFakeLedger()
    id := ideaID("a1")
    reserve(t, ledger, id, 42, 7)

    succ := &stubVerifier{ev: succeededEvent("pi_1", id, 42, 7)}
    require.NoError(t, NewReconciler(ledger, succ, nil, nil).HandleEvent(context.Background(), nil, ""))

    stale := &stubVerifier{ev: lifecycleEvent("pi_1", gateway.EventIntentProcessing, "payment_intent.processing")}
    require.NoError(t, NewReconciler(ledger, stale, nil, nil).HandleEvent(context.Background(), nil, ""))

    p, err := ledger.PaymentByIdea(context.Background(), id)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentSucceeded, p.Status)
}

func TestHandleEvent_FailedReleasesIdea(t *testing.T) {
    ledger := newFakeLedger()
    id := ideaID("a1")
    reserve(t, ledger, id, 42, 7)

    ver := &stubVerifier{ev: lifecycleEvent("pi_1", gateway.EventIntentFailed, "payment_intent.payment_failed")}
    require.NoError(t, NewReconciler(ledger, ver, nil, nil).HandleEvent(context.Background(), nil, ""))

    // The row stays as history but no longer holds the idea.
    p, err := ledger.ActivePaymentByIdea(context.Background(), id)
    require.NoError(t, err)
    assert.Nil(t, p)
}

func TestHandleEvent_UnknownIntentIsAcknowledged(t *testing.T) {
    ledger := newFakeLedger()
    ver := &stubVerifier{ev: lifecycleEvent("pi_ghost", gateway.EventIntentCanceled, "payment_intent.canceled")}
    assert.NoError(t, NewReconciler(ledger, ver, nil, nil).HandleEvent(context.Background(), nil, ""))
}

func TestHandleEvent_SucceededForUnknownIntentIsAcknowledged(t *testing.T) {
    // The reservation was already reclaimed by the sweeper; a very late
    // success must not resurrect the sale from nothing.
    ledger := newFakeLedger()
    id := ideaID("a1")
    ledger.addIdea(testIdea(id, 7, 100.00))
    notif := &recordingNotifier{}

    ver := &stubVerifier{ev: succeededEvent("pi_ghost", id, 42, 7)}
    require.NoError(t, NewReconciler(ledger, ver, notif, nil).HandleEvent(context.Background(), nil, ""))

    idea, err := ledger.GetIdea(context.Background(), id)
    require.NoError(t, err)
    assert.Nil(t, idea.BuyerID)
    assert.Empty(t, notif.events)
}

func TestHandleEvent_SucceededWithoutMetadataIsDropped(t *testing.T) {
    ledger := newFakeLedger()
    id := ideaID("a1")
    reserve(t, ledger, id, 42, 7)

    ev := succeededEvent("pi_1", id, 42, 7)
    ev.Metadata = gateway.IntentMetadata{}
    require.NoError(t, NewReconciler(ledger, &stubVerifier{ev: ev}, nil, nil).HandleEvent(context.Background(), nil, ""))

    p, err := ledger.PaymentByIdea(context.Background(), id)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentCreated, p.Status)
}

func TestHandleEvent_UnrecognizedKindIsAcknowledged(t *testing.T) {
    ver := &stubVerifier{ev: &gateway.Event{
        ID:       "evt_x",
        Kind:     gateway.EventUnrecognized,
        WireType: "charge.refunded",
    }}
    assert.NoError(t, NewReconciler(newFakeLedger(), ver, nil, nil).HandleEvent(context.Background(), nil, ""))
}

func TestHandleEvent_InvalidSignatureIsRejected(t *testing.T) {
    ver := &stubVerifier{err: gateway.ErrInvalidSignature}
    err := NewReconciler(newFakeLedger(), ver, nil, nil).HandleEvent(context.Background(), nil, "bad")
    assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}

func TestHandleEvent_PayoutPublishFailureDoesNotFailEvent(t *testing.T) {
    ledger := newFakeLedger()
    id := ideaID("a1")
    reserve(t, ledger, id, 42, 7)
    notif := &recordingNotifier{err: errGatewayDown}

    ver := &stubVerifier{ev: succeededEvent("pi_1", id, 42, 7)}
    require.NoError(t, NewReconciler(ledger, ver, notif, nil).HandleEvent(context.Background(), nil, ""))

    // The durable payout row exists even though the queue was down.
    assert.Len(t, ledger.payouts, 1)
}
