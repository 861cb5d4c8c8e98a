package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/iliyamo/idea-marketplace/internal/model"
)

// IdeaRepo provides CRUD access to the ideas table and its category and
// like side tables. Marketplace availability is derived, never stored:
// an idea is for sale when buyer_id is NULL and no active payments row
// exists for it, so the feed queries embed that predicate instead of
// reading a status column.
type IdeaRepo struct {
    db *sql.DB
}

// NewIdeaRepo returns a new IdeaRepo bound to the given database.
func NewIdeaRepo(db *sql.DB) *IdeaRepo { return &IdeaRepo{db: db} }

// forSalePredicate selects ideas visible on the marketplace feed: not
// sold, not expired and not blocked by an in-flight payment.
const forSalePredicate = `buyer_id IS NULL
    AND date_expiry > UTC_TIMESTAMP()
    AND NOT EXISTS (SELECT 1 FROM payments WHERE payments.active_idea_id = ideas.id)`

// feedPageSize is the number of ideas per feed page.
const feedPageSize = 10

// Create inserts a new idea together with its categories in one
// transaction. A duplicate content id maps to ErrDuplicate.
func (r *IdeaRepo) Create(ctx context.Context, idea *model.Idea) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer tx.Rollback()

    const q = `INSERT INTO ideas (id, seller_id, title, short_desc, long_desc, price, date_expiry)
               VALUES (?,?,?,?,?,?,?)`
    _, err = tx.ExecContext(ctx, q,
        idea.ID, idea.SellerID, idea.Title, idea.ShortDesc, idea.LongDesc,
        idea.Price, idea.DateExpiry.UTC())
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return ErrDuplicate
        }
        return err
    }

    for _, cat := range idea.Categories {
        if _, err = tx.ExecContext(ctx,
            `INSERT INTO ideas_categories (idea_id, category) VALUES (?, ?)`,
            idea.ID, cat); err != nil {
            return err
        }
    }
    return tx.Commit()
}

// Feed returns one page of for-sale ideas, newest first, optionally
// filtered by category, plus the number of matching ideas after this
// page (for endless scrolling).
func (r *IdeaRepo) Feed(ctx context.Context, page int, category string) ([]model.Idea, int, error) {
    if page < 0 {
        page = 0
    }
    var cat sql.NullString
    if category != "" {
        cat = sql.NullString{String: category, Valid: true}
    }

    const q = `SELECT id, seller_id, title, short_desc, price, date_publish, date_expiry,
                   (SELECT COUNT(*) FROM ideas_likes WHERE idea_id = ideas.id) AS likes
               FROM ideas
               WHERE ` + forSalePredicate + `
                 AND (? IS NULL OR id IN (SELECT idea_id FROM ideas_categories WHERE category = ?))
               ORDER BY date_publish DESC
               LIMIT ? OFFSET ?`
    rows, err := r.db.QueryContext(ctx, q, cat, cat, feedPageSize, page*feedPageSize)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    var ideas []model.Idea
    for rows.Next() {
        var i model.Idea
        if err := rows.Scan(&i.ID, &i.SellerID, &i.Title, &i.ShortDesc, &i.Price,
            &i.DatePublish, &i.DateExpiry, &i.Likes); err != nil {
            return nil, 0, err
        }
        ideas = append(ideas, i)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }

    for idx := range ideas {
        cats, err := r.categories(ctx, ideas[idx].ID)
        if err != nil {
            return nil, 0, err
        }
        ideas[idx].Categories = cats
    }

    const countQ = `SELECT COUNT(*) FROM ideas
                    WHERE ` + forSalePredicate + `
                      AND (? IS NULL OR id IN (SELECT idea_id FROM ideas_categories WHERE category = ?))`
    var total int
    if err := r.db.QueryRowContext(ctx, countQ, cat, cat).Scan(&total); err != nil {
        return nil, 0, err
    }
    left := total - (page*feedPageSize + len(ideas))
    if left < 0 {
        left = 0
    }
    return ideas, left, nil
}

// GetByID fetches one idea with categories and like count, including the
// long description. Callers decide whether the requester may see the
// long description (only the seller before sale, only the buyer after).
func (r *IdeaRepo) GetByID(ctx context.Context, ideaID string) (*model.Idea, error) {
    const q = `SELECT id, seller_id, buyer_id, title, short_desc, long_desc, price,
                   date_publish, date_expiry, date_bought,
                   (SELECT COUNT(*) FROM ideas_likes WHERE idea_id = ideas.id) AS likes
               FROM ideas WHERE id = ?`
    var (
        i      model.Idea
        buyer  sql.NullInt64
        bought sql.NullTime
    )
    err := r.db.QueryRowContext(ctx, q, ideaID).Scan(
        &i.ID, &i.SellerID, &buyer, &i.Title, &i.ShortDesc, &i.LongDesc, &i.Price,
        &i.DatePublish, &i.DateExpiry, &bought, &i.Likes)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, sql.ErrNoRows
    }
    if err != nil {
        return nil, err
    }
    if buyer.Valid {
        b := uint64(buyer.Int64)
        i.BuyerID = &b
    }
    if bought.Valid {
        t := bought.Time
        i.DateBought = &t
    }
    cats, err := r.categories(ctx, i.ID)
    if err != nil {
        return nil, err
    }
    i.Categories = cats
    return &i, nil
}

// ToggleLike adds or removes the user's like and reports the new state.
func (r *IdeaRepo) ToggleLike(ctx context.Context, ideaID string, userID uint64) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM ideas_likes WHERE idea_id = ? AND user_id = ?`, ideaID, userID)
    if err != nil {
        return false, err
    }
    if n, _ := res.RowsAffected(); n > 0 {
        return false, nil
    }
    _, err = r.db.ExecContext(ctx,
        `INSERT INTO ideas_likes (idea_id, user_id) VALUES (?, ?)`, ideaID, userID)
    return true, err
}

// BoughtByUser lists the ideas the user has purchased, newest sale first.
func (r *IdeaRepo) BoughtByUser(ctx context.Context, userID uint64) ([]model.Idea, error) {
    const q = `SELECT id, seller_id, buyer_id, title, short_desc, long_desc, price,
                   date_publish, date_expiry, date_bought,
                   (SELECT COUNT(*) FROM ideas_likes WHERE idea_id = ideas.id) AS likes
               FROM ideas WHERE buyer_id = ? ORDER BY date_bought DESC`
    return r.queryIdeas(ctx, q, userID)
}

// SoldIdea pairs a sold idea with its payout processing status.
type SoldIdea struct {
    Idea         model.Idea
    PayoutStatus string
}

// SoldBySeller lists the seller's sold ideas with the status of the
// corresponding payout request.
func (r *IdeaRepo) SoldBySeller(ctx context.Context, sellerID uint64) ([]SoldIdea, error) {
    const q = `SELECT ideas.id, ideas.seller_id, ideas.buyer_id, ideas.title, ideas.short_desc,
                   ideas.long_desc, ideas.price, ideas.date_publish, ideas.date_expiry,
                   ideas.date_bought,
                   (SELECT COUNT(*) FROM ideas_likes WHERE idea_id = ideas.id) AS likes,
                   COALESCE(payouts.status, '') AS payout_status
               FROM ideas LEFT JOIN payouts ON payouts.idea_id = ideas.id
               WHERE ideas.seller_id = ? AND ideas.buyer_id IS NOT NULL
               ORDER BY ideas.date_bought DESC`
    rows, err := r.db.QueryContext(ctx, q, sellerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []SoldIdea
    for rows.Next() {
        var (
            s      SoldIdea
            buyer  sql.NullInt64
            bought sql.NullTime
        )
        if err := rows.Scan(&s.Idea.ID, &s.Idea.SellerID, &buyer, &s.Idea.Title, &s.Idea.ShortDesc,
            &s.Idea.LongDesc, &s.Idea.Price, &s.Idea.DatePublish, &s.Idea.DateExpiry,
            &bought, &s.Idea.Likes, &s.PayoutStatus); err != nil {
            return nil, err
        }
        if buyer.Valid {
            b := uint64(buyer.Int64)
            s.Idea.BuyerID = &b
        }
        if bought.Valid {
            t := bought.Time
            s.Idea.DateBought = &t
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// categories loads the category labels of one idea.
func (r *IdeaRepo) categories(ctx context.Context, ideaID string) ([]string, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT category FROM ideas_categories WHERE idea_id = ? ORDER BY category`, ideaID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var cats []string
    for rows.Next() {
        var c string
        if err := rows.Scan(&c); err != nil {
            return nil, err
        }
        cats = append(cats, c)
    }
    return cats, rows.Err()
}

// queryIdeas runs a full-column idea query and scans the result list.
func (r *IdeaRepo) queryIdeas(ctx context.Context, q string, args ...any) ([]model.Idea, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Idea
    for rows.Next() {
        var (
            i      model.Idea
            buyer  sql.NullInt64
            bought sql.NullTime
        )
        if err := rows.Scan(&i.ID, &i.SellerID, &buyer, &i.Title, &i.ShortDesc, &i.LongDesc,
            &i.Price, &i.DatePublish, &i.DateExpiry, &bought, &i.Likes); err != nil {
            return nil, err
        }
        if buyer.Valid {
            b := uint64(buyer.Int64)
            i.BuyerID = &b
        }
        if bought.Valid {
            t := bought.Time
            i.DateBought = &t
        }
        out = append(out, i)
    }
    return out, rows.Err()
}
