package tracking

import (
	"strings"
	"testing"
)

func TestCodecSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	token, err := codec.Sign("rec-1", "camp-1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	recipientID, campaignID, ok := codec.Verify(token)
	if !ok {
		t.Fatal("Verify() should accept a freshly signed token")
	}
	if recipientID != "rec-1" || campaignID != "camp-1" {
		t.Fatalf("Verify() = (%q, %q), want (rec-1, camp-1)", recipientID, campaignID)
	}
}

func TestCodecVerifyRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	token, err := codec.Sign("rec-1", "camp-1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	// Flip one bit in the payload half.
	raw := []byte(token)
	raw[0] ^= 0x01
	if _, _, ok := codec.Verify(string(raw)); ok {
		t.Fatal("Verify() should reject a token with a flipped bit")
	}
}

func TestCodecVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	signer, _ := NewCodec("secret-a")
	verifier, _ := NewCodec("secret-b")

	token, err := signer.Sign("rec-1", "camp-1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, _, ok := verifier.Verify(token); ok {
		t.Fatal("Verify() should reject a token signed with another secret")
	}
}

func TestCodecVerifyRejectsMalformedTokens(t *testing.T) {
	t.Parallel()

	codec, _ := NewCodec("test-secret")

	for _, token := range []string{
		"",
		"nodot",
		"..",
		"not-base64!.also-not",
		strings.Repeat("A", 2048),
	} {
		if _, _, ok := codec.Verify(token); ok {
			t.Fatalf("Verify(%q) should fail", token)
		}
	}
}

func TestNewCodecRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewCodec("   "); err == nil {
		t.Fatal("NewCodec() should reject an empty secret")
	}
}

func TestInstrumenterWrapsLinksAndAppendsPixel(t *testing.T) {
	t.Parallel()

	codec, _ := NewCodec("test-secret")
	instr, err := NewInstrumenter(codec, "https://api.example.com/")
	if err != nil {
		t.Fatalf("NewInstrumenter() error = %v", err)
	}

	html := `<a href="https://shop.example.com/sale">Sale</a> <a href="mailto:x@y.z">mail</a> <a href="#top">top</a>`
	out, err := instr.Instrument(html, "rec-1", "camp-1")
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	if strings.Contains(out, `href="https://shop.example.com/sale"`) {
		t.Fatal("external link should be rewritten to the click redirect")
	}
	if !strings.Contains(out, "https://api.example.com/track/click?r=") {
		t.Fatalf("click redirect missing from output: %s", out)
	}
	if !strings.Contains(out, `href="mailto:x@y.z"`) {
		t.Fatal("mailto links must be left alone")
	}
	if !strings.Contains(out, `href="#top"`) {
		t.Fatal("fragment anchors must be left alone")
	}
	if !strings.Contains(out, "https://api.example.com/track/open?r=") {
		t.Fatal("open pixel missing from output")
	}
	if !strings.Contains(out, "url=https%3A%2F%2Fshop.example.com%2Fsale") {
		t.Fatalf("target url should be query-escaped into the redirect: %s", out)
	}
}
