package handshake

import (
	"net/url"
	"strings"
)

// CallbackParams is the parsed platform redirect. The raw field set is kept only to rebuild
// the signing string.
type CallbackParams struct {
	Shop  string
	Code  string
	State string

	fields map[string]string
}

// ParseCallback requires shop, code and state. For repeated keys the first value wins.
func ParseCallback(q url.Values) (CallbackParams, error) {
	fields := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	p := CallbackParams{
		Shop:   strings.TrimSpace(fields["shop"]),
		Code:   strings.TrimSpace(fields["code"]),
		State:  strings.TrimSpace(fields["state"]),
		fields: fields,
	}
	if p.Shop == "" || p.Code == "" || p.State == "" {
		return CallbackParams{}, ErrMissingParameters
	}
	return p, nil
}

// Verify runs the message-integrity check over the received fields.
func (p CallbackParams) Verify(secret string) bool {
	return VerifySignature(p.fields, secret)
}
