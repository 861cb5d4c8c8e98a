// Package reservation implements the purchase reservation protocol: it
// opens at-most-one in-flight payment per idea and per buyer, reconciles
// asynchronous gateway events into the ledger, and reclaims reservations
// that stalled without ever resolving. All persistent state lives in the
// ledger; the types here are stateless processors over it.
package reservation

import "errors"

// Conflict and lookup errors surfaced to buyers. Handlers translate each
// into a stable HTTP error code so clients can distinguish "someone else
// is buying this" (wait) from "you already have a pending purchase"
// (resume the existing checkout).
var (
    // ErrIdeaBusy means another buyer currently holds the active
    // reservation for this idea.
    ErrIdeaBusy = errors.New("idea is busy with another buyer's payment")

    // ErrUnresolvedPaymentExists means the requesting buyer already has a
    // different payment in flight and must resolve it first.
    ErrUnresolvedPaymentExists = errors.New("buyer has an unresolved payment")

    // ErrIdeaNotFound means no idea exists with the requested id.
    ErrIdeaNotFound = errors.New("idea not found")

    // ErrIdeaAlreadySold means the idea already belongs to a buyer.
    ErrIdeaAlreadySold = errors.New("idea already sold")

    // ErrPaymentNotFound means no payment row matches the lookup.
    ErrPaymentNotFound = errors.New("payment not found")

    // ErrPaymentNotCancelable means the payment already succeeded and the
    // sale cannot be undone through the cancel endpoint.
    ErrPaymentNotCancelable = errors.New("payment already succeeded")

    // ErrInvalidIdeaID means the supplied id is not a well-formed
    // content hash (64 lowercase hex characters).
    ErrInvalidIdeaID = errors.New("invalid idea id")
)
