package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"settlement-engine/pkg/config"
	"settlement-engine/pkg/errutil"
)

// Kind normalizes provider event types into the transitions the payment
// state machine understands.
type Kind string

const (
	KindSucceeded Kind = "succeeded"
	KindFailed    Kind = "failed"
	KindCanceled  Kind = "canceled"
	KindUnknown   Kind = "unknown"
)

// Event is a provider notification normalized to a common shape.
type Event struct {
	ProviderEventID string
	Type            string
	Kind            Kind
	CorrelationID   string
	Message         string
}

// Adapter verifies and decodes one provider's webhook format.
type Adapter interface {
	Provider() string
	Verify(header http.Header, body []byte) error
	Parse(body []byte) (*Event, error)
}

// Adapters indexes adapters by provider path segment.
type Adapters map[string]Adapter

func (a Adapters) For(provider string) (Adapter, bool) {
	adapter, ok := a[provider]
	return adapter, ok
}

func NewAdapters(cfg *config.Config) Adapters {
	return Adapters{
		"card":   &cardAdapter{secret: []byte(cfg.Providers.Card.WebhookSecret)},
		"payout": &payoutAdapter{secret: []byte(cfg.Providers.Payout.WebhookSecret)},
	}
}

func signBody(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHex(secret, payload []byte, gotHex string) error {
	want := signBody(secret, payload)
	if !hmac.Equal([]byte(want), []byte(strings.TrimSpace(gotHex))) {
		return errutil.BadRequest("webhook signature mismatch", nil)
	}
	return nil
}

// cardAdapter handles the card processor's format: a timestamped signature
// header "t=<unix>,v1=<hex>" where the signed payload is "<unix>.<body>".
type cardAdapter struct {
	secret []byte
}

func (a *cardAdapter) Provider() string { return "card" }

func (a *cardAdapter) Verify(header http.Header, body []byte) error {
	sig := header.Get("Webhook-Signature")
	if sig == "" {
		return errutil.BadRequest("missing signature header", nil)
	}

	var ts, v1 string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return errutil.BadRequest("malformed signature header", nil)
	}

	signed := append([]byte(ts+"."), body...)
	return verifyHex(a.secret, signed, v1)
}

type cardEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string `json:"id"`
			FailureMessage string `json:"failure_message"`
		} `json:"object"`
	} `json:"data"`
}

func (a *cardAdapter) Parse(body []byte) (*Event, error) {
	var raw cardEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errutil.BadRequest("malformed webhook payload", err)
	}
	if raw.ID == "" || raw.Type == "" || raw.Data.Object.ID == "" {
		return nil, errutil.BadRequest("webhook payload missing required fields", nil)
	}

	event := &Event{
		ProviderEventID: raw.ID,
		Type:            raw.Type,
		CorrelationID:   raw.Data.Object.ID,
		Message:         raw.Data.Object.FailureMessage,
	}
	switch raw.Type {
	case "payout.paid", "transfer.paid":
		event.Kind = KindSucceeded
	case "payout.failed", "transfer.failed":
		event.Kind = KindFailed
	case "payout.canceled", "transfer.reversed":
		event.Kind = KindCanceled
	default:
		event.Kind = KindUnknown
	}
	return event, nil
}

// payoutAdapter handles the payout network's format: a plain hex HMAC of the
// raw body in the X-Webhook-Signature header.
type payoutAdapter struct {
	secret []byte
}

func (a *payoutAdapter) Provider() string { return "payout" }

func (a *payoutAdapter) Verify(header http.Header, body []byte) error {
	sig := header.Get("X-Webhook-Signature")
	if sig == "" {
		return errutil.BadRequest("missing signature header", nil)
	}
	return verifyHex(a.secret, body, sig)
}

type payoutEvent struct {
	EventID  string `json:"event_id"`
	Event    string `json:"event"`
	PayoutID string `json:"payout_id"`
	Error    string `json:"error"`
}

func (a *payoutAdapter) Parse(body []byte) (*Event, error) {
	var raw payoutEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errutil.BadRequest("malformed webhook payload", err)
	}
	if raw.EventID == "" || raw.Event == "" || raw.PayoutID == "" {
		return nil, errutil.BadRequest("webhook payload missing required fields", nil)
	}

	event := &Event{
		ProviderEventID: raw.EventID,
		Type:            raw.Event,
		CorrelationID:   raw.PayoutID,
		Message:         raw.Error,
	}
	switch raw.Event {
	case "payout.completed":
		event.Kind = KindSucceeded
	case "payout.failed":
		event.Kind = KindFailed
	case "payout.cancelled":
		event.Kind = KindCanceled
	default:
		event.Kind = KindUnknown
	}
	return event, nil
}
