package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/idea-marketplace/internal/model"
    "github.com/iliyamo/idea-marketplace/internal/reservation"
)

// PaymentRepo is the MySQL implementation of reservation.Ledger. It owns
// the payments table and the cross-table transactions that touch ideas
// and payouts alongside it. All multi-statement operations lock the
// payment row with SELECT ... FOR UPDATE so that the webhook reconciler,
// the expiry sweeper and the request handlers serialize per reservation
// while staying fully concurrent across different ideas.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentCols = "id, idea_id, user_id, amount, currency, status, created_at, updated_at"

// scanPayment reads one payments row from any row scanner.
func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
    var p model.Payment
    var status string
    err := row.Scan(&p.ID, &p.IdeaID, &p.UserID, &p.Amount, &p.Currency, &status, &p.CreatedAt, &p.UpdatedAt)
    if err != nil {
        return nil, err
    }
    p.Status = model.PaymentStatus(status)
    return &p, nil
}

// GetIdea fetches the idea fields the reservation protocol needs. It
// returns reservation.ErrIdeaNotFound when no row exists.
func (r *PaymentRepo) GetIdea(ctx context.Context, ideaID string) (*model.Idea, error) {
    const q = `SELECT id, seller_id, buyer_id, title, short_desc, price, date_publish, date_expiry, date_bought
               FROM ideas WHERE id = ?`
    var (
        idea   model.Idea
        buyer  sql.NullInt64
        bought sql.NullTime
    )
    err := r.db.QueryRowContext(ctx, q, ideaID).Scan(
        &idea.ID, &idea.SellerID, &buyer, &idea.Title, &idea.ShortDesc,
        &idea.Price, &idea.DatePublish, &idea.DateExpiry, &bought,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reservation.ErrIdeaNotFound
    }
    if err != nil {
        return nil, err
    }
    if buyer.Valid {
        b := uint64(buyer.Int64)
        idea.BuyerID = &b
    }
    if bought.Valid {
        t := bought.Time
        idea.DateBought = &t
    }
    return &idea, nil
}

// ActivePaymentByIdea returns the payment currently blocking the idea,
// or nil. The active_idea_id generated column is NULL for terminal
// failure states, so the lookup is a direct unique-index probe.
func (r *PaymentRepo) ActivePaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error) {
    const q = `SELECT ` + paymentCols + ` FROM payments WHERE active_idea_id = ? LIMIT 1`
    p, err := scanPayment(r.db.QueryRowContext(ctx, q, ideaID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return p, err
}

// ActivePaymentByBuyer returns the buyer's unresolved payment, or nil.
func (r *PaymentRepo) ActivePaymentByBuyer(ctx context.Context, buyerID uint64) (*model.Payment, error) {
    const q = `SELECT ` + paymentCols + ` FROM payments WHERE active_buyer_id = ? LIMIT 1`
    p, err := scanPayment(r.db.QueryRowContext(ctx, q, buyerID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return p, err
}

// PaymentByIdea returns the idea's most recent payment row regardless of
// status, or nil when the idea has never been reserved.
func (r *PaymentRepo) PaymentByIdea(ctx context.Context, ideaID string) (*model.Payment, error) {
    const q = `SELECT ` + paymentCols + ` FROM payments WHERE idea_id = ? ORDER BY created_at DESC LIMIT 1`
    p, err := scanPayment(r.db.QueryRowContext(ctx, q, ideaID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return p, err
}

// InsertReservation inserts the payment row that represents an open
// reservation. The two generated-column unique indexes are the
// exclusivity guarantee: whichever concurrent insert commits second gets
// a duplicate-key error here, mapped to the matching conflict error.
func (r *PaymentRepo) InsertReservation(ctx context.Context, p *model.Payment) error {
    const q = `INSERT INTO payments (id, idea_id, user_id, amount, currency, status) VALUES (?,?,?,?,?,?)`
    _, err := r.db.ExecContext(ctx, q, p.ID, p.IdeaID, p.UserID, p.Amount, p.Currency, string(p.Status))
    if err != nil {
        msg := err.Error()
        switch {
        case strings.Contains(msg, "uq_payments_active_idea"):
            return reservation.ErrIdeaBusy
        case strings.Contains(msg, "uq_payments_active_buyer"):
            return reservation.ErrUnresolvedPaymentExists
        }
        return err
    }
    return nil
}

// DeletePayment removes a payment row by intent id.
func (r *PaymentRepo) DeletePayment(ctx context.Context, intentID string) error {
    _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, intentID)
    return err
}

// TransitionStatus moves a non-terminal payment to the given status
// inside a transaction with the row locked. Terminal rows are sticky and
// missing rows are a no-op; both report applied == false.
func (r *PaymentRepo) TransitionStatus(ctx context.Context, intentID string, status model.PaymentStatus) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    defer tx.Rollback()

    cur, ok, err := lockPaymentStatus(ctx, tx, intentID)
    if err != nil {
        return false, err
    }
    if !ok || cur.Terminal() {
        return false, nil
    }

    if _, err = tx.ExecContext(ctx, `UPDATE payments SET status = ? WHERE id = ?`, string(status), intentID); err != nil {
        return false, err
    }
    if err = tx.Commit(); err != nil {
        return false, err
    }
    return true, nil
}

// FinalizeSale applies a confirmed sale in one transaction: payment to
// succeeded, idea to the buyer stamped with the gateway's event time,
// and the seller's payout request row. Replays and events for terminal
// or missing rows commit nothing and report applied == false.
func (r *PaymentRepo) FinalizeSale(ctx context.Context, intentID, ideaID string, buyerID, sellerID uint64, occurredAt time.Time) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    defer tx.Rollback()

    cur, ok, err := lockPaymentStatus(ctx, tx, intentID)
    if err != nil {
        return false, err
    }
    if !ok || cur.Terminal() {
        // Succeeded again (duplicate delivery), a stale event for a
        // settled payment, or a reservation the sweeper already removed.
        return false, nil
    }

    if _, err = tx.ExecContext(ctx,
        `UPDATE payments SET status = ? WHERE id = ?`,
        string(model.PaymentSucceeded), intentID); err != nil {
        return false, err
    }
    if _, err = tx.ExecContext(ctx,
        `UPDATE ideas SET buyer_id = ?, date_bought = ? WHERE id = ?`,
        buyerID, occurredAt.UTC(), ideaID); err != nil {
        return false, err
    }
    if _, err = tx.ExecContext(ctx,
        `INSERT INTO payouts (idea_id, user_id) VALUES (?, ?)`,
        ideaID, sellerID); err != nil {
        return false, fmt.Errorf("insert payout: %w", err)
    }

    if err = tx.Commit(); err != nil {
        return false, err
    }
    return true, nil
}

// StalePayments lists reservations past the cutoff that neither
// succeeded nor were already canceled.
func (r *PaymentRepo) StalePayments(ctx context.Context, cutoff time.Time) ([]model.Payment, error) {
    const q = `SELECT ` + paymentCols + ` FROM payments
               WHERE status NOT IN ('succeeded','canceled') AND created_at < ?`
    rows, err := r.db.QueryContext(ctx, q, cutoff.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Payment
    for rows.Next() {
        p, err := scanPayment(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *p)
    }
    return out, rows.Err()
}

// ReclaimIfStale deletes the payment only if it is still reclaimable at
// mutation time. The status re-check runs under the row lock in the same
// transaction as the delete, so a reservation that flipped to succeeded
// after the sweep's scan survives untouched.
func (r *PaymentRepo) ReclaimIfStale(ctx context.Context, intentID string, cutoff time.Time) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    defer tx.Rollback()

    const q = `SELECT status, created_at FROM payments WHERE id = ? FOR UPDATE`
    var (
        status  string
        created time.Time
    )
    err = tx.QueryRowContext(ctx, q, intentID).Scan(&status, &created)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    if model.PaymentStatus(status) == model.PaymentSucceeded || !created.Before(cutoff) {
        return false, nil
    }

    if _, err = tx.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, intentID); err != nil {
        return false, err
    }
    if err = tx.Commit(); err != nil {
        return false, err
    }
    return true, nil
}

// AllPayments lists every payment row, newest first. Used by the admin
// surface to inspect in-flight and settled reservations.
func (r *PaymentRepo) AllPayments(ctx context.Context) ([]model.Payment, error) {
    const q = `SELECT ` + paymentCols + ` FROM payments ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Payment
    for rows.Next() {
        p, err := scanPayment(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *p)
    }
    return out, rows.Err()
}

// lockPaymentStatus locks the payment row and returns its status. ok is
// false when the row does not exist.
func lockPaymentStatus(ctx context.Context, tx *sql.Tx, intentID string) (model.PaymentStatus, bool, error) {
    var status string
    err := tx.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = ? FOR UPDATE`, intentID).Scan(&status)
    if errors.Is(err, sql.ErrNoRows) {
        return "", false, nil
    }
    if err != nil {
        return "", false, err
    }
    return model.PaymentStatus(status), true, nil
}
