package reservation

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/iliyamo/idea-marketplace/internal/gateway"
    "github.com/iliyamo/idea-marketplace/internal/model"
)

// fakeLedger is an in-memory Ledger with the same semantics as the MySQL
// implementation, including the active-uniqueness constraints. A single
// mutex stands in for the database's transactional isolation.
type fakeLedger struct {
    mu       sync.Mutex
    ideas    map[string]*model.Idea
    payments map[string]*model.Payment // by intent id
    payouts  []model.Payout

    // failInsert forces InsertReservation to fail with a generic error.
    failInsert error
}

func newFakeLedger() *fakeLedger {
    return &fakeLedger{
        ideas:    map[string]*model.Idea{},
        payments: map[string]*model.Payment{},
    }
}

func (f *fakeLedger) addIdea(i *model.Idea) { f.ideas[i.ID] = i }

func (f *fakeLedger) GetIdea(ctx context.Context, ideaID string) (*model.Idea, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    i, ok := f.ideas[ideaID]
    if !ok {
        return nil, ErrIdeaNotFound
    }
    cp := *i
    return &cp, nil
}

func activeForIdea(p *model.Payment) bool {
    return p.Status != model.PaymentCanceled && p.Status != model.PaymentFailed
}

func activeForBuyer(p *model.Payment) bool {
    return activeForIdea(p) && p.Status != model.PaymentSucceeded
}

func (f *fakeLedger) ActivePaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, p := range f.payments {
        if p.IdeaID == ideaID && activeForIdea(p) {
            cp := *p
            return &cp, nil
        }
    }
    return nil, nil
}

func (f *fakeLedger) ActivePaymentByBuyer(ctx context.Context, buyerID uint64) (*model.Payment, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, p := range f.payments {
        if p.UserID == buyerID && activeForBuyer(p) {
            cp := *p
            return &cp, nil
        }
    }
    return nil, nil
}

func (f *fakeLedger) PaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, p := range f.payments {
        if p.IdeaID == ideaID {
            cp := *p
            return &cp, nil
        }
    }
    return nil, nil
}

func (f *fakeLedger) InsertReservation(ctx context.Context, p *model.Payment) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failInsert != nil {
        return f.failInsert
    }
    for _, q := range f.payments {
        if q.IdeaID == p.IdeaID && activeForIdea(q) {
            return ErrIdeaBusy
        }
        if q.UserID == p.UserID && activeForBuyer(q) {
            return ErrUnresolvedPaymentExists
        }
    }
    cp := *p
    if cp.CreatedAt.IsZero() {
        cp.CreatedAt = time.Now().UTC()
    }
    f.payments[cp.ID] = &cp
    return nil
}

func (f *fakeLedger) DeletePayment(ctx context.Context, intentID string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    delete(f.payments, intentID)
    return nil
}

func (f *fakeLedger) TransitionStatus(ctx context.Context, intentID string, status model.PaymentStatus) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    p, ok := f.payments[intentID]
    if !ok || p.Status.Terminal() {
        return false, nil
    }
    p.Status = status
    return true, nil
}

func (f *fakeLedger) FinalizeSale(ctx context.Context, intentID, ideaID string, buyerID, sellerID uint64, occurredAt time.Time) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    p, ok := f.payments[intentID]
    if !ok || p.Status.Terminal() {
        return false, nil
    }
    p.Status = model.PaymentSucceeded
    if i, ok := f.ideas[ideaID]; ok {
        b := buyerID
        t := occurredAt
        i.BuyerID = &b
        i.DateBought = &t
    }
    f.payouts = append(f.payouts, model.Payout{IdeaID: ideaID, UserID: sellerID, Status: "pending"})
    return true, nil
}

func (f *fakeLedger) StalePayments(ctx context.Context, cutoff time.Time) ([]model.Payment, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.Payment
    for _, p := range f.payments {
        if p.Status != model.PaymentSucceeded && p.Status != model.PaymentCanceled && p.CreatedAt.Before(cutoff) {
            out = append(out, *p)
        }
    }
    return out, nil
}

func (f *fakeLedger) ReclaimIfStale(ctx context.Context, intentID string, cutoff time.Time) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    p, ok := f.payments[intentID]
    if !ok || p.Status == model.PaymentSucceeded || !p.CreatedAt.Before(cutoff) {
        return false, nil
    }
    delete(f.payments, intentID)
    return true, nil
}

// fakeGateway is an in-memory gateway.Client recording its calls.
type fakeGateway struct {
    mu        sync.Mutex
    seq       int
    intents   map[string]*gateway.Intent
    canceled  []string
    createErr error
    cancelErr error
}

func newFakeGateway() *fakeGateway {
    return &fakeGateway{intents: map[string]*gateway.Intent{}}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, in gateway.CreateIntentInput) (*gateway.Intent, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    if g.createErr != nil {
        return nil, g.createErr
    }
    g.seq++
    id := fmt.Sprintf("pi_%d", g.seq)
    intent := &gateway.Intent{
        ID:           id,
        ClientSecret: id + "_secret",
        Status:       "requires_payment_method",
        Amount:       in.Amount,
        Currency:     in.Currency,
    }
    g.intents[id] = intent
    return intent, nil
}

func (g *fakeGateway) RetrieveIntent(ctx context.Context, id string) (*gateway.Intent, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    intent, ok := g.intents[id]
    if !ok {
        return nil, gateway.ErrIntentNotFound
    }
    return intent, nil
}

func (g *fakeGateway) CancelIntent(ctx context.Context, id string) error {
    g.mu.Lock()
    defer g.mu.Unlock()
    if g.cancelErr != nil {
        return g.cancelErr
    }
    g.canceled = append(g.canceled, id)
    return nil
}

func (g *fakeGateway) canceledIDs() []string {
    g.mu.Lock()
    defer g.mu.Unlock()
    return append([]string(nil), g.canceled...)
}

// errGatewayDown simulates an unreachable provider.
var errGatewayDown = errors.New("gateway unreachable")
