package qr

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/chris/trustline/pkg/errs"
)

const (
	// Scheme is the URI scheme of every QR payload.
	Scheme = "paynaka"

	prefix     = Scheme + "://scan/"
	tokenBytes = 32
)

// BuildPayload composes the payload encoded in a vendor's QR code.
func BuildPayload(vendorID, token string) string {
	return prefix + vendorID + "/" + token
}

// ParsePayload splits a payload into its vendor id and token.
// Anything other than exactly two non-empty segments after the fixed prefix is malformed.
func ParsePayload(qrData string) (vendorID, token string, err error) {
	rest, ok := strings.CutPrefix(qrData, prefix)
	if !ok {
		return "", "", errs.ErrMalformedQR.WithMessage("qr payload must start with %s", prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errs.ErrMalformedQR.WithMessage("qr payload must have exactly two segments after %s", prefix)
	}
	return parts[0], parts[1], nil
}

// newToken draws 256 bits from r and encodes them as unpadded base64url.
func newToken(r io.Reader) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to read token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
