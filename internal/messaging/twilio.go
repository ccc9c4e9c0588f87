package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Address prefixes Twilio uses for channel routing.
const (
	whatsappPrefix  = "whatsapp:"
	messengerPrefix = "messenger:"
)

// ValidateTwilioSignature validates that a request came from Twilio.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)

	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload creates the payload string for signature
// verification: the full URL followed by every POST param in key order.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// InboundMessage is an incoming Twilio messaging webhook.
type InboundMessage struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	MediaURL   string
}

// Platform derives the chat platform from the sender address prefix.
func (m *InboundMessage) Platform() string {
	switch {
	case strings.HasPrefix(m.From, whatsappPrefix):
		return "whatsapp"
	case strings.HasPrefix(m.From, messengerPrefix):
		return "facebook"
	default:
		return "whatsapp"
	}
}

// SenderID strips the channel prefix off the sender address.
func (m *InboundMessage) SenderID() string {
	s := strings.TrimPrefix(m.From, whatsappPrefix)
	return strings.TrimPrefix(s, messengerPrefix)
}

// ParseInbound parses a Twilio messaging webhook request.
func ParseInbound(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: parse webhook form: %w", err)
	}
	return &InboundMessage{
		MessageSid: r.FormValue("MessageSid"),
		AccountSid: r.FormValue("AccountSid"),
		From:       r.FormValue("From"),
		To:         r.FormValue("To"),
		Body:       r.FormValue("Body"),
		MediaURL:   r.FormValue("MediaUrl0"),
	}, nil
}

// TwiMLReply renders a single-message TwiML response body.
func TwiMLReply(body string) string {
	if body == "" {
		return `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	}
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Message>` + xmlEscape(body) + `</Message></Response>`
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
