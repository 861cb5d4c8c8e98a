// Package queue defines message payloads exchanged over the message broker.
package queue

// PayoutRequestedEvent is published when a sale is finalized and the
// seller is owed their share. It contains enough information for
// downstream consumers to log, notify, or trigger the actual transfer
// without querying the primary database.
type PayoutRequestedEvent struct {
    IdeaID      string `json:"idea_id"`
    SellerID    uint64 `json:"seller_id"`
    RequestedAt string `json:"requested_at"`
}
