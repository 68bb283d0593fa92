package handshake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const (
	signatureField       = "hmac"
	legacySignatureField = "signature"
)

// CanonicalString sorts the fields by key and joins them as k=v pairs with '&'.
// Both signature fields are excluded.
func CanonicalString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == signatureField || k == legacySignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// Sign returns the hex HMAC-SHA256 of the canonical string.
func Sign(fields map[string]string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks fields["hmac"] against the HMAC of the remaining fields.
// An absent, non-hex or wrongly sized signature is rejected before any comparison.
func VerifySignature(fields map[string]string, secret string) bool {
	presented, ok := fields[signatureField]
	if !ok || presented == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(presented)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(fields)))
	return hmac.Equal(got, mac.Sum(nil))
}
