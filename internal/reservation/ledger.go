package reservation

import (
    "context"
    "time"

    "github.com/iliyamo/idea-marketplace/internal/model"
)

// Ledger is the transactional storage contract the reservation protocol
// runs on. The production implementation lives in the repository package
// on top of MySQL; tests substitute an in-memory fake. Every method is a
// single atomic unit — multi-step read-modify-write sequences run inside
// one database transaction with the payment row locked, so callers never
// hold locks across gateway I/O.
type Ledger interface {
    // GetIdea fetches an idea by id, ErrIdeaNotFound when absent.
    GetIdea(ctx context.Context, ideaID string) (*model.Idea, error)

    // ActivePaymentByIdea returns the idea's active reservation (status
    // not canceled/failed), or nil when the idea is unreserved.
    ActivePaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error)

    // ActivePaymentByBuyer returns the buyer's unresolved reservation
    // (status not succeeded/canceled/failed), or nil.
    ActivePaymentByBuyer(ctx context.Context, buyerID uint64) (*model.Payment, error)

    // PaymentByIdea returns the idea's payment row regardless of status,
    // or nil when none exists.
    PaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error)

    // InsertReservation persists a new payment row. The storage-level
    // active-uniqueness indexes are the exclusivity guarantee: a row that
    // would make a second active reservation for the idea fails with
    // ErrIdeaBusy, one that would make a second unresolved payment for
    // the buyer fails with ErrUnresolvedPaymentExists.
    InsertReservation(ctx context.Context, p *model.Payment) error

    // DeletePayment removes a payment row by intent id. Used by the
    // explicit cancel endpoint after the gateway cancel went through.
    DeletePayment(ctx context.Context, intentID string) error

    // TransitionStatus moves a non-terminal payment to the given status
    // and reports whether the write was applied. Terminal rows are left
    // untouched (applied == false): terminal states are sticky and stale
    // out-of-order events must not revert them. A missing row is also
    // reported as not applied, never as an error — an event for an
    // unknown intent (e.g. one whose reservation was already swept) is
    // acknowledged as a no-op.
    TransitionStatus(ctx context.Context, intentID string, status model.PaymentStatus) (bool, error)

    // FinalizeSale atomically marks the payment succeeded, assigns the
    // idea to the buyer stamped with the event's server-side time, and
    // records the seller's payout request. Applying it twice is a no-op
    // (applied == false on replays), which is what makes duplicate
    // succeeded deliveries safe.
    FinalizeSale(ctx context.Context, intentID, ideaID string, buyerID, sellerID uint64, occurredAt time.Time) (bool, error)

    // StalePayments lists reservations that have neither succeeded nor
    // been canceled and were created before the cutoff.
    StalePayments(ctx context.Context, cutoff time.Time) ([]model.Payment, error)

    // ReclaimIfStale deletes the payment row only if it is still stale at
    // mutation time: the status is re-checked under a row lock in the
    // same transaction, so a reservation that flipped to succeeded
    // between the sweep's scan and this call is left alone.
    ReclaimIfStale(ctx context.Context, intentID string, cutoff time.Time) (bool, error)
}
