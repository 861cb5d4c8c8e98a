package handler

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "net/http"
    "sync"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/idea-marketplace/internal/model"
    "github.com/iliyamo/idea-marketplace/internal/repository"
    "github.com/iliyamo/idea-marketplace/internal/utils"
)

// memIdeas is an in-memory IdeaStore keyed by idea id, mirroring the
// primary-key collision the real table enforces.
type memIdeas struct {
    mu    sync.Mutex
    ideas map[string]*model.Idea
}

func newMemIdeas() *memIdeas { return &memIdeas{ideas: map[string]*model.Idea{}} }

func (m *memIdeas) Create(ctx context.Context, idea *model.Idea) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.ideas[idea.ID]; ok {
        return repository.ErrDuplicate
    }
    m.ideas[idea.ID] = idea
    return nil
}

func (m *memIdeas) Feed(ctx context.Context, page int, category string) ([]model.Idea, int, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    out := make([]model.Idea, 0, len(m.ideas))
    for _, i := range m.ideas {
        out = append(out, *i)
    }
    return out, 0, nil
}

func (m *memIdeas) GetByID(ctx context.Context, ideaID string) (*model.Idea, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    i, ok := m.ideas[ideaID]
    if !ok {
        return nil, sql.ErrNoRows
    }
    return i, nil
}

func (m *memIdeas) ToggleLike(ctx context.Context, ideaID string, userID uint64) (bool, error) {
    return true, nil
}

func (m *memIdeas) BoughtByUser(ctx context.Context, userID uint64) ([]model.Idea, error) {
    return nil, nil
}

func (m *memIdeas) SoldBySeller(ctx context.Context, sellerID uint64) ([]repository.SoldIdea, error) {
    return nil, nil
}

func newIdeaTestServer() (*echo.Echo, *IdeaHandler, *memIdeas) {
    store := newMemIdeas()
    e := echo.New()
    e.Validator = NewValidator()
    return e, NewIdeaHandler(store), store
}

func publishBody(title, longDesc string) string {
    return fmt.Sprintf(`{"title":%q,"short_desc":"An umbrella that charges phones","long_desc":%q,"price":25}`,
        title, longDesc)
}

func TestIdeaPublish(t *testing.T) {
    e, h, store := newIdeaTestServer()
    content := "A pocket umbrella that trickle-charges your phone from sunlight."

    rec := call(e, http.MethodPost, "/v1/ideas", publishBody("Solar umbrella", content), 7, h.Publish)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

    var resp map[string]string
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, utils.IdeaID(content), resp["id"], "id is the content hash")

    idea, err := store.GetByID(context.Background(), resp["id"])
    require.NoError(t, err)
    assert.Equal(t, uint64(7), idea.SellerID)
}

func TestIdeaPublish_SameContentIsDuplicate(t *testing.T) {
    e, h, _ := newIdeaTestServer()
    content := "A pocket umbrella that trickle-charges your phone from sunlight."

    rec := call(e, http.MethodPost, "/v1/ideas", publishBody("Solar umbrella", content), 7, h.Publish)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

    // Same content under a new title, even from another seller, maps to
    // the same id and must be rejected.
    rec = call(e, http.MethodPost, "/v1/ideas", publishBody("Sun brolly mk2", content), 8, h.Publish)
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Contains(t, rec.Body.String(), "already published")
}

func TestIdeaPublish_InvalidBody(t *testing.T) {
    e, h, _ := newIdeaTestServer()

    rec := call(e, http.MethodPost, "/v1/ideas", `{"title":"x"}`, 7, h.Publish)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}
