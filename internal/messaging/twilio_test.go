package messaging

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestValidateTwilioSignature(t *testing.T) {
	const token = "secret-token"
	const webhookURL = "https://chat.wisrod.com/messaging/twilio/webhook"

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "whatsapp:+254700000001")
	form.Set("Body", "hello")

	req := httptest.NewRequest("POST", "/messaging/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(webhookURL, form), token))

	if !ValidateTwilioSignature(req, token, webhookURL) {
		t.Fatal("expected valid signature")
	}
}

func TestValidateTwilioSignatureRejectsTampering(t *testing.T) {
	const token = "secret-token"
	const webhookURL = "https://chat.wisrod.com/messaging/twilio/webhook"

	form := url.Values{}
	form.Set("Body", "hello")
	signature := computeSignature(buildSignaturePayload(webhookURL, form), token)

	form.Set("Body", "transfer all my money")
	req := httptest.NewRequest("POST", "/messaging/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", signature)

	if ValidateTwilioSignature(req, token, webhookURL) {
		t.Fatal("tampered payload must not validate")
	}
}

func TestValidateTwilioSignatureMissingHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/messaging/twilio/webhook", nil)
	if ValidateTwilioSignature(req, "token", "https://example.com/hook") {
		t.Fatal("missing signature must not validate")
	}
}

func TestInboundPlatformDetection(t *testing.T) {
	wa := &InboundMessage{From: "whatsapp:+254700000001"}
	if wa.Platform() != "whatsapp" || wa.SenderID() != "+254700000001" {
		t.Fatalf("whatsapp detection: %s / %s", wa.Platform(), wa.SenderID())
	}
	fb := &InboundMessage{From: "messenger:1234567890"}
	if fb.Platform() != "facebook" || fb.SenderID() != "1234567890" {
		t.Fatalf("messenger detection: %s / %s", fb.Platform(), fb.SenderID())
	}
}

func TestTwiMLReplyEscapes(t *testing.T) {
	got := TwiMLReply(`Rates < 12% & "fees"`)
	if !strings.Contains(got, "Rates &lt; 12% &amp; &quot;fees&quot;") {
		t.Fatalf("unescaped TwiML: %s", got)
	}
	empty := TwiMLReply("")
	if strings.Contains(empty, "<Message>") {
		t.Fatalf("empty reply should have no message element: %s", empty)
	}
}
