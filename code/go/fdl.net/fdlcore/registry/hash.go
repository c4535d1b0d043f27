package registry

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
)

// HashedParam computes the opaque identifier for a registry triple:
// rot13(base64(sha512hex(salt + ctx + mediaSourceID + filename))).
// It is deterministic for a fixed salt and not reversible; the registry
// lookup is the only way back to the filename.
func HashedParam(salt, ctx string, mediaSourceID int, filename string) string {
	input := salt + ctx + strconv.Itoa(mediaSourceID) + filename
	sum := sha512.Sum512([]byte(input))
	digest := hex.EncodeToString(sum[:])
	encoded := base64.StdEncoding.EncodeToString([]byte(digest))
	return rot13(encoded)
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		}
		return r
	}, s)
}
