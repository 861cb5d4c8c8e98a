package gateway

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"
)

// EventKind is the closed set of webhook event types this service
// recognizes. Anything else parses to EventUnrecognized, which the
// reconciler acknowledges without touching the ledger — so adding a new
// provider event type is an explicit, compile-time-visible decision here
// rather than a silent string fallthrough.
type EventKind int

const (
    EventUnrecognized EventKind = iota
    EventIntentCanceled
    EventIntentFailed
    EventIntentProcessing
    EventIntentRequiresAction
    EventIntentSucceeded
)

// String returns the provider wire name for recognized kinds.
func (k EventKind) String() string {
    switch k {
    case EventIntentCanceled:
        return "payment_intent.canceled"
    case EventIntentFailed:
        return "payment_intent.payment_failed"
    case EventIntentProcessing:
        return "payment_intent.processing"
    case EventIntentRequiresAction:
        return "payment_intent.requires_action"
    case EventIntentSucceeded:
        return "payment_intent.succeeded"
    default:
        return "unrecognized"
    }
}

func kindFromWire(t string) EventKind {
    switch t {
    case "payment_intent.canceled":
        return EventIntentCanceled
    case "payment_intent.payment_failed":
        return EventIntentFailed
    case "payment_intent.processing":
        return EventIntentProcessing
    case "payment_intent.requires_action":
        return EventIntentRequiresAction
    case "payment_intent.succeeded":
        return EventIntentSucceeded
    default:
        return EventUnrecognized
    }
}

// Event is a verified, decoded webhook delivery. OccurredAt is the
// provider's server-side timestamp, not the local receipt time — the
// reconciler stamps date_bought with it so that replays and multi-instance
// processing agree on ordering regardless of local clock skew.
type Event struct {
    ID         string
    Kind       EventKind
    WireType   string // raw type string, kept for logging unrecognized kinds
    OccurredAt time.Time
    Intent     Intent
    Metadata   IntentMetadata
}

// ErrInvalidSignature is returned when a webhook payload fails HMAC
// verification or its timestamp is outside the accepted tolerance. Such
// deliveries must never reach the ledger.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// signatureTolerance bounds how stale a signed timestamp may be. It
// defends against replayed captures of old deliveries.
const signatureTolerance = 5 * time.Minute

// WebhookVerifier checks provider signatures on inbound event payloads
// and decodes them into Events. The secret is shared out-of-band with
// the provider when the endpoint is registered.
type WebhookVerifier struct {
    secret []byte
    now    func() time.Time // injectable for tests
}

// NewWebhookVerifier returns a verifier for the given shared secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
    return &WebhookVerifier{secret: []byte(secret), now: time.Now}
}

// ParseEvent verifies the signature header against the raw payload and,
// on success, decodes the event. The header format is
// "t=<unix>,v1=<hex hmac>" where the MAC covers "<unix>.<payload>".
// Multiple v1 entries are accepted (key rotation); any one match passes.
func (v *WebhookVerifier) ParseEvent(payload []byte, sigHeader string) (*Event, error) {
    ts, macs, err := parseSigHeader(sigHeader)
    if err != nil {
        return nil, ErrInvalidSignature
    }

    age := v.now().UTC().Sub(time.Unix(ts, 0))
    if age > signatureTolerance || age < -signatureTolerance {
        return nil, ErrInvalidSignature
    }

    mac := hmac.New(sha256.New, v.secret)
    mac.Write([]byte(strconv.FormatInt(ts, 10)))
    mac.Write([]byte("."))
    mac.Write(payload)
    expected := mac.Sum(nil)

    ok := false
    for _, m := range macs {
        raw, decErr := hex.DecodeString(m)
        if decErr == nil && hmac.Equal(raw, expected) {
            ok = true
            break
        }
    }
    if !ok {
        return nil, ErrInvalidSignature
    }

    return decodeEvent(payload)
}

// parseSigHeader splits "t=...,v1=...,v1=..." into the timestamp and the
// candidate MACs.
func parseSigHeader(h string) (ts int64, macs []string, err error) {
    for _, part := range strings.Split(h, ",") {
        k, val, found := strings.Cut(strings.TrimSpace(part), "=")
        if !found {
            continue
        }
        switch k {
        case "t":
            ts, err = strconv.ParseInt(val, 10, 64)
            if err != nil {
                return 0, nil, err
            }
        case "v1":
            macs = append(macs, val)
        }
    }
    if ts == 0 || len(macs) == 0 {
        return 0, nil, errors.New("malformed signature header")
    }
    return ts, macs, nil
}

// eventEnvelope mirrors the provider's webhook JSON envelope.
type eventEnvelope struct {
    ID      string `json:"id"`
    Type    string `json:"type"`
    Created int64  `json:"created"`
    Data    struct {
        Object intentPayload `json:"object"`
    } `json:"data"`
}

func decodeEvent(payload []byte) (*Event, error) {
    var env eventEnvelope
    if err := json.Unmarshal(payload, &env); err != nil {
        return nil, fmt.Errorf("gateway: decode event: %w", err)
    }

    ev := &Event{
        ID:         env.ID,
        Kind:       kindFromWire(env.Type),
        WireType:   env.Type,
        OccurredAt: time.Unix(env.Created, 0).UTC(),
        Intent:     *toIntent(&env.Data.Object),
    }

    md := env.Data.Object.Metadata
    ev.Metadata.IdeaID = md["idea_id"]
    if s, ok := md["seller_id"]; ok {
        if n, err := strconv.ParseUint(s, 10, 64); err == nil {
            ev.Metadata.SellerID = n
        }
    }
    if b, ok := md["buyer_id"]; ok {
        if n, err := strconv.ParseUint(b, 10, 64); err == nil {
            ev.Metadata.BuyerID = n
        }
    }
    return ev, nil
}
