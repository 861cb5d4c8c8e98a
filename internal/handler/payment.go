package handler

import (
    "context"
    "errors"
    "io"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/idea-marketplace/internal/gateway"
    "github.com/iliyamo/idea-marketplace/internal/model"
    "github.com/iliyamo/idea-marketplace/internal/reservation"
)

// maxWebhookBody bounds webhook payload reads. Provider events are a
// few KB; anything bigger is not ours.
const maxWebhookBody = 1 << 20

// UserGetter loads the authenticated buyer's account. Satisfied by
// repository.UserRepo.
type UserGetter interface {
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// PaymentHandler exposes the purchase flow: open a reservation, fetch
// the in-flight checkout secret, abandon a reservation, and receive the
// provider's asynchronous webhook events.
type PaymentHandler struct {
    Manager    *reservation.Manager
    Reconciler *reservation.Reconciler
    Users      UserGetter
}

func NewPaymentHandler(m *reservation.Manager, r *reservation.Reconciler, users UserGetter) *PaymentHandler {
    if m == nil || r == nil || users == nil {
        panic("nil dependency passed to NewPaymentHandler")
    }
    return &PaymentHandler{Manager: m, Reconciler: r, Users: users}
}

// paymentError maps reservation errors onto stable JSON payloads so
// clients can branch on code without parsing messages.
func paymentError(c echo.Context, err error) error {
    type body struct {
        Error string `json:"error"`
        Code  string `json:"code"`
    }
    switch {
    case errors.Is(err, reservation.ErrInvalidIdeaID):
        return c.JSON(http.StatusBadRequest, body{"idea id is invalid", "invalid_idea_id"})
    case errors.Is(err, reservation.ErrIdeaNotFound):
        return c.JSON(http.StatusNotFound, body{"idea not found", "idea_not_found"})
    case errors.Is(err, reservation.ErrIdeaAlreadySold):
        return c.JSON(http.StatusGone, body{"idea is already sold", "idea_already_sold"})
    case errors.Is(err, reservation.ErrIdeaBusy):
        return c.JSON(http.StatusConflict, body{"idea is reserved by another buyer", "idea_busy"})
    case errors.Is(err, reservation.ErrUnresolvedPaymentExists):
        return c.JSON(http.StatusConflict, body{"you already have an unresolved payment", "unresolved_payment_exists"})
    case errors.Is(err, reservation.ErrPaymentNotFound):
        return c.JSON(http.StatusNotFound, body{"no payment in progress", "payment_not_found"})
    case errors.Is(err, reservation.ErrPaymentNotCancelable):
        return c.JSON(http.StatusConflict, body{"payment can no longer be canceled", "payment_not_cancelable"})
    }
    return c.JSON(http.StatusInternalServerError, body{"payment operation failed", "internal"})
}

// Create handles GET /payment/create?idea_id=... It opens a reservation
// on the idea for the authenticated buyer and returns the client secret
// used to finish checkout with the provider. Retrying while the same
// buyer's reservation is open returns the same secret.
func (h *PaymentHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ideaID := c.QueryParam("idea_id")

    ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
    defer cancel()

    buyer, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    secret, err := h.Manager.CreateReservation(ctx, ideaID, &buyer)
    if err != nil {
        return paymentError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"clientSecret": secret})
}

// Get handles GET /payment/get. It returns the checkout secret of the
// buyer's own in-flight reservation so a resumed session can finish
// paying.
func (h *PaymentHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    secret, err := h.Manager.ReservationSecret(ctx, uid)
    if err != nil {
        return paymentError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"clientSecret": secret})
}

// Cancel handles DELETE /payment/cancel?idea_id=... It abandons the
// idea's in-flight payment and puts the idea back on sale.
func (h *PaymentHandler) Cancel(c echo.Context) error {
    if _, err := getUserID(c); err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ideaID := c.QueryParam("idea_id")

    ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
    defer cancel()

    if err := h.Manager.CancelReservation(ctx, ideaID); err != nil {
        return paymentError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

// Webhook handles POST /payment/webhook, the provider's event delivery
// endpoint. No JWT here: authentication is the HMAC signature header.
// A bad signature returns 400 so the provider retries; everything else
// is acknowledged with 200.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable payload"})
    }
    sig := c.Request().Header.Get("Gateway-Signature")

    ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
    defer cancel()

    if err := h.Reconciler.HandleEvent(ctx, payload, sig); err != nil {
        if errors.Is(err, gateway.ErrInvalidSignature) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
        }
        // Transient local failure; let the provider redeliver.
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event not applied"})
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}
