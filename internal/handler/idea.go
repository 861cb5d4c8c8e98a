package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/idea-marketplace/internal/model"
    "github.com/iliyamo/idea-marketplace/internal/repository"
    "github.com/iliyamo/idea-marketplace/internal/utils"
)

// ideaExpiryDays is how long a listing stays on the marketplace before
// the feed stops showing it.
const ideaExpiryDays = 90

// IdeaStore is the listing storage surface the handler needs. Satisfied
// by repository.IdeaRepo.
type IdeaStore interface {
    Create(ctx context.Context, idea *model.Idea) error
    Feed(ctx context.Context, page int, category string) ([]model.Idea, int, error)
    GetByID(ctx context.Context, ideaID string) (*model.Idea, error)
    ToggleLike(ctx context.Context, ideaID string, userID uint64) (bool, error)
    BoughtByUser(ctx context.Context, userID uint64) ([]model.Idea, error)
    SoldBySeller(ctx context.Context, sellerID uint64) ([]repository.SoldIdea, error)
}

// IdeaHandler bundles dependencies for listing endpoints.
type IdeaHandler struct {
    Ideas IdeaStore
}

func NewIdeaHandler(ideas IdeaStore) *IdeaHandler {
    if ideas == nil {
        panic("nil repository passed to NewIdeaHandler")
    }
    return &IdeaHandler{Ideas: ideas}
}

// ----- DTOs -----

type publishIdeaReq struct {
    Title      string   `json:"title" validate:"required,min=3,max=120"`
    ShortDesc  string   `json:"short_desc" validate:"required,max=300"`
    LongDesc   string   `json:"long_desc" validate:"required"`
    Price      float64  `json:"price" validate:"required,gt=0"`
    Categories []string `json:"categories" validate:"max=5,dive,min=2,max=32"`
}

type ideaPart struct {
    ID          string    `json:"id"`
    SellerID    uint64    `json:"seller_id"`
    Title       string    `json:"title"`
    ShortDesc   string    `json:"short_desc"`
    LongDesc    string    `json:"long_desc,omitempty"`
    Price       float64   `json:"price"`
    DatePublish time.Time `json:"date_publish"`
    DateExpiry  time.Time `json:"date_expiry"`
    Categories  []string  `json:"categories"`
    Likes       uint32    `json:"likes"`
    Sold        bool      `json:"sold"`
}

func ideaToPart(i *model.Idea, withLong bool) ideaPart {
    p := ideaPart{
        ID:          i.ID,
        SellerID:    i.SellerID,
        Title:       i.Title,
        ShortDesc:   i.ShortDesc,
        Price:       i.Price,
        DatePublish: i.DatePublish,
        DateExpiry:  i.DateExpiry,
        Categories:  i.Categories,
        Likes:       i.Likes,
        Sold:        i.Sold(),
    }
    if withLong {
        p.LongDesc = i.LongDesc
    }
    return p
}

// Publish handles POST /v1/ideas. The idea id is a hash of the long
// description, so publishing the same content twice collides and is
// rejected as a duplicate.
func (h *IdeaHandler) Publish(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req publishIdeaReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Title = strings.TrimSpace(req.Title)
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    now := time.Now().UTC()
    idea := &model.Idea{
        ID:          utils.IdeaID(req.LongDesc),
        SellerID:    uid,
        Title:       req.Title,
        ShortDesc:   req.ShortDesc,
        LongDesc:    req.LongDesc,
        Price:       req.Price,
        DatePublish: now,
        DateExpiry:  now.AddDate(0, 0, ideaExpiryDays),
        Categories:  req.Categories,
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Ideas.Create(ctx, idea); err != nil {
        if errors.Is(err, repository.ErrDuplicate) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "idea already published"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "publish failed"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"id": idea.ID})
}

// Feed handles GET /ideas. Public, cached. Query params: page (0-based)
// and category. The response carries how many ideas remain after this
// page so the client knows when to stop scrolling.
func (h *IdeaHandler) Feed(c echo.Context) error {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    category := strings.TrimSpace(c.QueryParam("category"))

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    ideas, left, err := h.Ideas.Feed(ctx, page, category)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "feed query failed"})
    }

    parts := make([]ideaPart, 0, len(ideas))
    for i := range ideas {
        parts = append(parts, ideaToPart(&ideas[i], false))
    }
    return c.JSON(http.StatusOK, echo.Map{"ideas": parts, "count_left": left})
}

// Get handles GET /v1/ideas/:id. The long description is only disclosed
// to the seller, or to the buyer once the sale closed; everyone else
// sees the public surface.
func (h *IdeaHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ideaID := c.Param("id")
    if !utils.ValidIdeaID(ideaID) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "idea id is invalid"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    idea, err := h.Ideas.GetByID(ctx, ideaID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "idea not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }

    withLong := idea.SellerID == uid ||
        (idea.BuyerID != nil && *idea.BuyerID == uid)
    return c.JSON(http.StatusOK, ideaToPart(idea, withLong))
}

// Like handles POST /v1/ideas/:id/like and toggles the user's like.
func (h *IdeaHandler) Like(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ideaID := c.Param("id")
    if !utils.ValidIdeaID(ideaID) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "idea id is invalid"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    liked, err := h.Ideas.ToggleLike(ctx, ideaID, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "like failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"liked": liked})
}

// Bought handles GET /v1/ideas/bought, the buyer's library. Full
// content: these ideas belong to the requester.
func (h *IdeaHandler) Bought(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    ideas, err := h.Ideas.BoughtByUser(ctx, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    parts := make([]ideaPart, 0, len(ideas))
    for i := range ideas {
        parts = append(parts, ideaToPart(&ideas[i], true))
    }
    return c.JSON(http.StatusOK, echo.Map{"ideas": parts})
}

// Sold handles GET /v1/ideas/sold: the seller's closed sales with the
// payout request status alongside each.
func (h *IdeaHandler) Sold(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    sold, err := h.Ideas.SoldBySeller(ctx, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }

    type soldPart struct {
        ideaPart
        PayoutStatus string `json:"payout_status"`
    }
    parts := make([]soldPart, 0, len(sold))
    for i := range sold {
        parts = append(parts, soldPart{
            ideaPart:     ideaToPart(&sold[i].Idea, false),
            PayoutStatus: sold[i].PayoutStatus,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"ideas": parts})
}
