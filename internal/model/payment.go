package model

import "time"

// PaymentStatus enumerates the lifecycle states of a payment as reported
// by the gateway. The zero value is not meaningful; rows are created with
// whatever status the gateway returned from intent creation (usually
// requires_payment_method) and only ever move forward from there.
type PaymentStatus string

const (
    PaymentCreated        PaymentStatus = "created"
    PaymentRequiresAction PaymentStatus = "requires_action"
    PaymentProcessing     PaymentStatus = "processing"
    PaymentSucceeded      PaymentStatus = "succeeded"
    PaymentFailed         PaymentStatus = "failed"
    PaymentCanceled       PaymentStatus = "canceled"
)

// Terminal reports whether the status permits no further transitions.
// Once a payment reaches a terminal state, later (out-of-order or
// duplicated) gateway events must not move it anywhere else.
func (s PaymentStatus) Terminal() bool {
    return s == PaymentSucceeded || s == PaymentFailed || s == PaymentCanceled
}

// Payment mirrors the `payments` table. One row ties a buyer's in-flight
// payment intent to exactly one idea; the primary key is the gateway's
// intent id so asynchronous webhook events need no extra correlation
// table. Uniqueness of active rows per idea and per buyer is enforced by
// generated-column unique indexes in the schema, not by application code.
//
// Fields:
//  ID        – gateway payment-intent id (external correlation key).
//  IdeaID    – idea being purchased.
//  UserID    – buyer who opened the reservation.
//  Amount    – amount in the smallest currency unit (cents).
//  Currency  – ISO 4217 lowercase code, e.g. "usd".
//  Status    – last status mirrored from the gateway.
//  CreatedAt – reservation open time; drives the expiry sweep.
//  UpdatedAt – last mutation time.
type Payment struct {
    ID        string        // payments.id
    IdeaID    string        // payments.idea_id
    UserID    uint64        // payments.user_id
    Amount    int64         // payments.amount
    Currency  string        // payments.currency
    Status    PaymentStatus // payments.status
    CreatedAt time.Time     // payments.created_at
    UpdatedAt time.Time     // payments.updated_at
}

// Payout records a pending payout request for a seller whose idea was
// sold. The external payout workflow consumes these rows; this service
// only ever inserts them (exactly once per idea, see uq_payouts_idea).
//
// Fields:
//  ID          – primary key identifier.
//  IdeaID      – idea that was sold.
//  UserID      – seller owed the payout.
//  Status      – payout processing status, managed externally.
//  DateCreated – when the sale was confirmed.
type Payout struct {
    ID          uint64    // payouts.id
    IdeaID      string    // payouts.idea_id
    UserID      uint64    // payouts.user_id
    Status      string    // payouts.status
    DateCreated time.Time // payouts.date_created
}
