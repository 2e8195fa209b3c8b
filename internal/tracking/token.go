// Package tracking implements the signed token codec behind the public
// pixel/click endpoints and the recorder that turns verified tokens into
// open/click events.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// Tokens ride inside delivered emails and may be exercised months after the
// send, so unlike session tokens they carry no expiry.

// Codec signs and verifies tracking tokens binding a (recipient, campaign)
// pair. The token format is base64url(payload) "." base64url(hmac-sha256).
type Codec struct {
	secret []byte
}

func NewCodec(secret string) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("tracking secret is required")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Sign produces an opaque token for the given recipient and campaign.
func (c *Codec) Sign(recipientID, campaignID string) (string, error) {
	if strings.TrimSpace(recipientID) == "" || strings.TrimSpace(campaignID) == "" {
		return "", fmt.Errorf("recipient id and campaign id are required")
	}

	payload := []byte(recipientID + ":" + campaignID)
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)

	return base64.RawURLEncoding.EncodeToString(payload) +
		"." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a token and returns the bound recipient and campaign ids.
// Any malformed or tampered token yields ok=false with no detail: the public
// endpoints must not become an oracle for forging tokens.
func (c *Codec) Verify(token string) (recipientID, campaignID string, ok bool) {
	payloadPart, sigPart, found := strings.Cut(token, ".")
	if !found {
		return "", "", false
	}

	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return "", "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return "", "", false
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return "", "", false
	}

	recipientID, campaignID, found = strings.Cut(string(payload), ":")
	if !found || recipientID == "" || campaignID == "" {
		return "", "", false
	}
	return recipientID, campaignID, true
}
