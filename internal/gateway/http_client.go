package gateway

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"
)

// HTTPClient talks to the provider's payment-intent REST API. Requests
// are form-encoded with bearer authentication, the provider's wire
// convention. Construct it with NewHTTPClient; the zero value is not
// usable.
type HTTPClient struct {
    baseURL string
    apiKey  string
    client  *http.Client
}

// NewHTTPClient returns a client for the given API base URL and secret
// key. The timeout bounds every call including connection setup; a
// provider hang must never pin a request handler for longer than this.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
    if timeout <= 0 {
        timeout = 15 * time.Second
    }
    return &HTTPClient{
        baseURL: strings.TrimRight(baseURL, "/"),
        apiKey:  apiKey,
        client:  &http.Client{Timeout: timeout},
    }
}

// intentPayload mirrors the provider's payment-intent resource. Only the
// fields this service reads are declared.
type intentPayload struct {
    ID           string            `json:"id"`
    ClientSecret string            `json:"client_secret"`
    Status       string            `json:"status"`
    Amount       int64             `json:"amount"`
    Currency     string            `json:"currency"`
    Metadata     map[string]string `json:"metadata"`
}

// apiError mirrors the provider's error envelope.
type apiError struct {
    Error struct {
        Type    string `json:"type"`
        Code    string `json:"code"`
        Message string `json:"message"`
    } `json:"error"`
}

// CreateIntent opens a payment intent for the given amount and tags it
// with the reservation metadata. The idempotency key makes the call safe
// to retry after a network failure without opening a second intent.
func (g *HTTPClient) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
    form := url.Values{}
    form.Set("amount", strconv.FormatInt(in.Amount, 10))
    form.Set("currency", in.Currency)
    if in.ReceiptEmail != "" {
        form.Set("receipt_email", in.ReceiptEmail)
    }
    if in.Description != "" {
        form.Set("description", in.Description)
    }
    form.Set("metadata[idea_id]", in.Metadata.IdeaID)
    form.Set("metadata[seller_id]", strconv.FormatUint(in.Metadata.SellerID, 10))
    form.Set("metadata[buyer_id]", strconv.FormatUint(in.Metadata.BuyerID, 10))

    headers := map[string]string{}
    if in.IdempotencyKey != "" {
        headers["Idempotency-Key"] = in.IdempotencyKey
    }
    p, err := g.do(ctx, http.MethodPost, "/v1/payment_intents", form, headers)
    if err != nil {
        return nil, err
    }
    return toIntent(p), nil
}

// RetrieveIntent fetches the current provider-side state of an intent.
func (g *HTTPClient) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
    p, err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, nil)
    if err != nil {
        return nil, err
    }
    return toIntent(p), nil
}

// CancelIntent asks the provider to cancel an intent. The distinguished
// ErrAlreadyCanceled and ErrIntentNotFound returns let compensating
// callers (sweeper, manual cancel) treat a lost race as success.
func (g *HTTPClient) CancelIntent(ctx context.Context, id string) error {
    _, err := g.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id)+"/cancel", url.Values{}, nil)
    return err
}

// do performs one API call and decodes either an intent payload or the
// provider's error envelope.
func (g *HTTPClient) do(ctx context.Context, method, path string, form url.Values, headers map[string]string) (*intentPayload, error) {
    var body io.Reader
    if form != nil {
        body = strings.NewReader(form.Encode())
    }
    req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
    if err != nil {
        return nil, err
    }
    req.Header.Set("Authorization", "Bearer "+g.apiKey)
    if form != nil {
        req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
    }
    for k, v := range headers {
        req.Header.Set(k, v)
    }

    resp, err := g.client.Do(req)
    if err != nil {
        return nil, fmt.Errorf("gateway: %s %s: %w", method, path, err)
    }
    defer resp.Body.Close()

    raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
    if err != nil {
        return nil, fmt.Errorf("gateway: read response: %w", err)
    }

    if resp.StatusCode >= 400 {
        var apiErr apiError
        if err := json.Unmarshal(raw, &apiErr); err == nil {
            switch {
            case resp.StatusCode == http.StatusNotFound || apiErr.Error.Code == "resource_missing":
                return nil, ErrIntentNotFound
            case apiErr.Error.Code == "payment_intent_unexpected_state" &&
                strings.Contains(apiErr.Error.Message, "canceled"):
                return nil, ErrAlreadyCanceled
            }
            log.Printf("gateway: api error on %s %s: %s (%s)", method, path, apiErr.Error.Message, apiErr.Error.Code)
        }
        return nil, fmt.Errorf("gateway: %s %s: status %d", method, path, resp.StatusCode)
    }

    var p intentPayload
    if err := json.Unmarshal(raw, &p); err != nil {
        return nil, fmt.Errorf("gateway: decode response: %w", err)
    }
    return &p, nil
}

func toIntent(p *intentPayload) *Intent {
    return &Intent{
        ID:           p.ID,
        ClientSecret: p.ClientSecret,
        Status:       p.Status,
        Amount:       p.Amount,
        Currency:     p.Currency,
    }
}
