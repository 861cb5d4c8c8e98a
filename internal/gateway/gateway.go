// Package gateway wraps the external payment processor. The rest of the
// application talks to the Client interface only; the concrete
// implementation issues REST calls to the provider's payment-intent API
// and verifies inbound webhook signatures. The provider is the source of
// truth for payment state — this package never caches intent status.
package gateway

import (
    "context"
    "errors"
)

// Intent is the provider-side payment object created for a reservation.
// The ClientSecret is the opaque handle the buyer's browser uses to
// complete the payment directly with the provider; this service never
// sees card credentials.
type Intent struct {
    ID           string
    ClientSecret string
    Status       string
    Amount       int64
    Currency     string
}

// IntentMetadata travels with the intent to the provider and comes back
// verbatim inside webhook events. It is the only channel through which
// the asynchronous reconciler can identify which rows to mutate, so all
// three fields are mandatory at creation time.
type IntentMetadata struct {
    IdeaID   string
    SellerID uint64
    BuyerID  uint64
}

// CreateIntentInput carries everything needed to open a payment intent.
type CreateIntentInput struct {
    Amount         int64  // smallest currency unit (cents)
    Currency       string // lowercase ISO 4217
    ReceiptEmail   string
    Description    string
    IdempotencyKey string
    Metadata       IntentMetadata
}

// ErrAlreadyCanceled is returned by CancelIntent when the provider
// reports the intent as already canceled or expired. Callers performing
// compensating cancels treat it as success.
var ErrAlreadyCanceled = errors.New("intent already canceled")

// ErrIntentNotFound is returned when the provider has no record of the
// requested intent id.
var ErrIntentNotFound = errors.New("intent not found")

// Client is the narrow contract the reservation subsystem has with the
// payment provider. All calls use the request context and the underlying
// HTTP client applies a bounded timeout; a timeout surfaces as a plain
// error and the caller decides whether it is fatal (reservation open) or
// tolerable (sweeper cancel).
type Client interface {
    CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
    RetrieveIntent(ctx context.Context, id string) (*Intent, error)
    CancelIntent(ctx context.Context, id string) error
}
