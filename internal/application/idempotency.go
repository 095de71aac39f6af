package application

import (
	"encoding/base32"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// eventIDEncoding yields only the characters a-v and 0-9, which every
// supported calendar provider accepts in client supplied event ids.
var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// IdempotentEventID derives a stable event id from the organizer and a client
// supplied key, so a retried create resolves to the same event. It returns ""
// when key is blank.
func IdempotentEventID(organizerEmail, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(strings.ToLower(organizerEmail) + "\x00" + key))
	return strings.ToLower(eventIDEncoding.EncodeToString(sum[:]))
}
