package gateway

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestCreateIntent_SendsFormAndIdempotencyKey(t *testing.T) {
    var gotForm map[string]string
    var gotKey, gotAuth string

    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        require.Equal(t, http.MethodPost, r.Method)
        require.Equal(t, "/v1/payment_intents", r.URL.Path)
        require.NoError(t, r.ParseForm())
        gotForm = map[string]string{}
        for k := range r.PostForm {
            gotForm[k] = r.PostForm.Get(k)
        }
        gotKey = r.Header.Get("Idempotency-Key")
        gotAuth = r.Header.Get("Authorization")
        json.NewEncoder(w).Encode(map[string]any{
            "id":            "pi_42",
            "client_secret": "pi_42_secret",
            "status":        "requires_payment_method",
            "amount":        10000,
            "currency":      "usd",
        })
    }))
    defer srv.Close()

    g := NewHTTPClient(srv.URL, "sk_test_abc", 5*time.Second)
    intent, err := g.CreateIntent(context.Background(), CreateIntentInput{
        Amount:         10000,
        Currency:       "usd",
        ReceiptEmail:   "buyer@example.com",
        IdempotencyKey: "key-1",
        Metadata:       IntentMetadata{IdeaID: "aa11", SellerID: 7, BuyerID: 42},
    })
    require.NoError(t, err)

    assert.Equal(t, "pi_42", intent.ID)
    assert.Equal(t, "pi_42_secret", intent.ClientSecret)
    assert.Equal(t, "Bearer sk_test_abc", gotAuth)
    assert.Equal(t, "key-1", gotKey)
    assert.Equal(t, "10000", gotForm["amount"])
    assert.Equal(t, "usd", gotForm["currency"])
    assert.Equal(t, "aa11", gotForm["metadata[idea_id]"])
    assert.Equal(t, "7", gotForm["metadata[seller_id]"])
    assert.Equal(t, "42", gotForm["metadata[buyer_id]"])
}

func TestCancelIntent_AlreadyCanceled(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusBadRequest)
        json.NewEncoder(w).Encode(map[string]any{
            "error": map[string]any{
                "type":    "invalid_request_error",
                "code":    "payment_intent_unexpected_state",
                "message": "This PaymentIntent could not be canceled because it is already canceled.",
            },
        })
    }))
    defer srv.Close()

    g := NewHTTPClient(srv.URL, "sk_test_abc", 5*time.Second)
    err := g.CancelIntent(context.Background(), "pi_42")
    assert.ErrorIs(t, err, ErrAlreadyCanceled)
}

func TestRetrieveIntent_NotFound(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusNotFound)
        json.NewEncoder(w).Encode(map[string]any{
            "error": map[string]any{"type": "invalid_request_error", "code": "resource_missing", "message": "no such intent"},
        })
    }))
    defer srv.Close()

    g := NewHTTPClient(srv.URL, "sk_test_abc", 5*time.Second)
    _, err := g.RetrieveIntent(context.Background(), "pi_missing")
    assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestRetrieveIntent_OK(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        require.Equal(t, "/v1/payment_intents/pi_42", r.URL.Path)
        json.NewEncoder(w).Encode(map[string]any{
            "id": "pi_42", "client_secret": "pi_42_secret", "status": "processing",
            "amount": 500, "currency": "usd",
        })
    }))
    defer srv.Close()

    g := NewHTTPClient(srv.URL, "sk_test_abc", 5*time.Second)
    intent, err := g.RetrieveIntent(context.Background(), "pi_42")
    require.NoError(t, err)
    assert.Equal(t, "processing", intent.Status)
    assert.Equal(t, int64(500), intent.Amount)
}
