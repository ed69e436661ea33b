package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix>,v1=<hex>" on signed webhook deliveries.
const SignatureHeader = "X-BookBetter-Signature"

var ErrStaleSignature = errors.New("signature timestamp outside tolerance")

// WebhookSigner signs and verifies webhook bodies as HMAC-SHA256 over "<t>.<body>".
type WebhookSigner struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookSigner builds a signer. A zero tolerance disables the timestamp check.
func NewWebhookSigner(secret string, tolerance time.Duration) *WebhookSigner {
	return &WebhookSigner{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Sign returns the header value for body at time at.
func (w *WebhookSigner) Sign(body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, w.mac(ts, body))
}

// Verify checks header against body.
func (w *WebhookSigner) Verify(header string, body []byte) error {
	if len(w.secret) == 0 {
		return fmt.Errorf("signing secret missing")
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return ErrMalformedToken
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedToken
	}
	if !hmac.Equal([]byte(w.mac(ts, body)), []byte(sig)) {
		return ErrBadSignature
	}
	if w.tolerance > 0 {
		age := w.now().Sub(time.Unix(unix, 0))
		if age < -w.tolerance || age > w.tolerance {
			return ErrStaleSignature
		}
	}
	return nil
}

func (w *WebhookSigner) mac(ts string, body []byte) string {
	mac := hmac.New(sha256.New, w.secret)
	_, _ = mac.Write([]byte(ts))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
