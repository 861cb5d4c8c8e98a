package router

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/idea-marketplace/internal/gateway"
    "github.com/iliyamo/idea-marketplace/internal/handler"
    "github.com/iliyamo/idea-marketplace/internal/model"
    "github.com/iliyamo/idea-marketplace/internal/repository"
    "github.com/iliyamo/idea-marketplace/internal/reservation"
)

// The stubs below only exist so routes can be registered; the tests
// never reach a handler body that touches them.

type stubLedger struct{}

func (stubLedger) GetIdea(ctx context.Context, ideaID string) (*model.Idea, error) {
    return nil, reservation.ErrIdeaNotFound
}
func (stubLedger) ActivePaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error) {
    return nil, nil
}
func (stubLedger) ActivePaymentByBuyer(ctx context.Context, buyerID uint64) (*model.Payment, error) {
    return nil, nil
}
func (stubLedger) PaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error) {
    return nil, nil
}
func (stubLedger) InsertReservation(ctx context.Context, p *model.Payment) error { return nil }
func (stubLedger) DeletePayment(ctx context.Context, intentID string) error      { return nil }
func (stubLedger) TransitionStatus(ctx context.Context, intentID string, status model.PaymentStatus) (bool, error) {
    return false, nil
}
func (stubLedger) FinalizeSale(ctx context.Context, intentID, ideaID string, buyerID, sellerID uint64, occurredAt time.Time) (bool, error) {
    return false, nil
}
func (stubLedger) StalePayments(ctx context.Context, cutoff time.Time) ([]model.Payment, error) {
    return nil, nil
}
func (stubLedger) ReclaimIfStale(ctx context.Context, intentID string, cutoff time.Time) (bool, error) {
    return false, nil
}

type stubGateway struct{}

func (stubGateway) CreateIntent(ctx context.Context, in gateway.CreateIntentInput) (*gateway.Intent, error) {
    return &gateway.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}
func (stubGateway) RetrieveIntent(ctx context.Context, id string) (*gateway.Intent, error) {
    return &gateway.Intent{ID: id}, nil
}
func (stubGateway) CancelIntent(ctx context.Context, id string) error { return nil }

type stubUsers struct{}

func (stubUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
    return model.User{ID: id, Role: "USER"}, nil
}

// The response cache must sit on the public feed route alone. Wiring it
// in front of the authenticated surface would serve one buyer's
// checkout secret to another, or to nobody at all, before the JWT layer
// ever runs.
func TestResponseCacheScopedToPublicFeed(t *testing.T) {
    e := echo.New()

    var cacheHits []string
    // Stands in for the cache middleware on a HIT: short-circuits the
    // chain exactly like a cached response would.
    feedCache := func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            cacheHits = append(cacheHits, c.Path())
            return c.NoContent(http.StatusNoContent)
        }
    }

    RegisterIdeas(e, handler.NewIdeaHandler(newStubIdeas()), "secret", feedCache)

    manager := reservation.NewManager(stubLedger{}, stubGateway{}, "usd", nil)
    reconciler := reservation.NewReconciler(stubLedger{}, gateway.NewWebhookVerifier("whsec_test"), nil, nil)
    RegisterPayments(e, handler.NewPaymentHandler(manager, reconciler, stubUsers{}), "secret")

    // The public feed goes through the cache.
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ideas", nil))
    require.Equal(t, http.StatusNoContent, rec.Code)
    require.Equal(t, []string{"/ideas"}, cacheHits)

    // Payment routes never do: an unauthenticated request dies at the
    // JWT layer instead of being answered from a cache.
    ideaID := strings.Repeat("a", 64)
    for _, target := range []string{"/payment/get", "/payment/create?idea_id=" + ideaID} {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
        assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
    }
    assert.Len(t, cacheHits, 1, "cache middleware ran on an authenticated route")
}

func TestRegisterIdeas_NoCacheMiddleware(t *testing.T) {
    e := echo.New()
    RegisterIdeas(e, handler.NewIdeaHandler(newStubIdeas()), "secret", nil)

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ideas", nil))
    assert.Equal(t, http.StatusOK, rec.Code)
}

// stubIdeas backs the feed with a single listing.
type stubIdeas struct{}

func newStubIdeas() stubIdeas { return stubIdeas{} }

func (stubIdeas) Create(ctx context.Context, idea *model.Idea) error { return nil }
func (stubIdeas) Feed(ctx context.Context, page int, category string) ([]model.Idea, int, error) {
    return []model.Idea{{ID: strings.Repeat("a", 64), Title: "Test", Price: 10}}, 0, nil
}
func (stubIdeas) GetByID(ctx context.Context, ideaID string) (*model.Idea, error) {
    return nil, reservation.ErrIdeaNotFound
}
func (stubIdeas) ToggleLike(ctx context.Context, ideaID string, userID uint64) (bool, error) {
    return false, nil
}
func (stubIdeas) BoughtByUser(ctx context.Context, userID uint64) ([]model.Idea, error) {
    return nil, nil
}
func (stubIdeas) SoldBySeller(ctx context.Context, sellerID uint64) ([]repository.SoldIdea, error) {
    return nil, nil
}
