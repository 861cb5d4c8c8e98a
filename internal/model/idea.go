package model

import "time"

// Idea represents a sellable listing as stored in the `ideas` table.
// The id is derived from the listing content (SHA-256 of title, seller
// and publish date) so it is stable and collision-resistant.
//
// BuyerID is NULL while the idea is for sale and holds a concrete user
// id once a purchase has been confirmed by the payment provider. There
// is deliberately no in-between marker value: an idea counts as
// "reserved" exactly when an active payments row exists for it.
//
// Fields:
//  ID          – content-derived SHA-256 identifier (64 hex chars).
//  SellerID    – user who published the idea.
//  BuyerID     – purchaser, nil while unsold.
//  Title       – short display title.
//  ShortDesc   – teaser shown on the marketplace feed.
//  LongDesc    – full description, revealed only to the buyer.
//  Price       – listing price in the marketplace currency.
//  DatePublish – when the idea went on sale.
//  DateExpiry  – when the listing expires from the feed.
//  DateBought  – set by the webhook reconciler on confirmed sale (nil before).
type Idea struct {
    ID          string     // ideas.id
    SellerID    uint64     // ideas.seller_id
    BuyerID     *uint64    // ideas.buyer_id (nullable)
    Title       string     // ideas.title
    ShortDesc   string     // ideas.short_desc
    LongDesc    string     // ideas.long_desc
    Price       float64    // ideas.price
    DatePublish time.Time  // ideas.date_publish
    DateExpiry  time.Time  // ideas.date_expiry
    DateBought  *time.Time // ideas.date_bought (nullable)
    Categories  []string   // ideas_categories.category rows
    Likes       uint32     // COUNT(*) over ideas_likes
}

// Sold reports whether the idea already belongs to a buyer.
func (i *Idea) Sold() bool { return i.BuyerID != nil }
