package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/idea-marketplace/internal/repository"
)

// AdminHandler exposes read-only oversight endpoints, guarded by the
// ADMIN role upstream.
type AdminHandler struct {
    PaymentRepo *repository.PaymentRepo
}

func NewAdminHandler(payments *repository.PaymentRepo) *AdminHandler {
    if payments == nil {
        panic("nil repository passed to NewAdminHandler")
    }
    return &AdminHandler{PaymentRepo: payments}
}

type paymentPart struct {
    ID        string    `json:"id"`
    IdeaID    string    `json:"idea_id"`
    UserID    uint64    `json:"user_id"`
    Amount    int64     `json:"amount"`
    Currency  string    `json:"currency"`
    Status    string    `json:"status"`
    CreatedAt time.Time `json:"created_at"`
    UpdatedAt time.Time `json:"updated_at"`
}

// Payments handles GET /v1/admin/payments, the full payment ledger
// including terminal rows kept as history.
func (h *AdminHandler) Payments(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    payments, err := h.PaymentRepo.AllPayments(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    parts := make([]paymentPart, 0, len(payments))
    for _, p := range payments {
        parts = append(parts, paymentPart{
            ID:        p.ID,
            IdeaID:    p.IdeaID,
            UserID:    p.UserID,
            Amount:    p.Amount,
            Currency:  p.Currency,
            Status:    string(p.Status),
            CreatedAt: p.CreatedAt,
            UpdatedAt: p.UpdatedAt,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"payments": parts})
}
