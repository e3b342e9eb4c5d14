package commission

import (
	"errors"
	"strings"
)

// KeySeparator joins the owner and client components of a record key. Each
// component is escaped before joining ('%' -> "%25", '_' -> "%5F") so that
// DeriveKey stays injective even when an input contains the separator. For the
// usual alphabet (no underscore, no percent) the key reads as plain
// "owner_client", which is also the durable document id.
const KeySeparator = "_"

// ErrMalformedKey signals a key that does not split into owner and client
// components.
var ErrMalformedKey = errors.New("commission: malformed record key")

func escapeKeyPart(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, "_", "%5F")
}

func unescapeKeyPart(s string) string {
	s = strings.ReplaceAll(s, "%5F", "_")
	return strings.ReplaceAll(s, "%25", "%")
}

// DeriveKey builds the stable unique record id for an (owner, client) pair.
// The key doubles as the persistence identity, which makes record creation an
// upsert: submitting twice with the same owner and client id overwrites rather
// than duplicates.
func DeriveKey(ownerID, clientID string) string {
	return escapeKeyPart(ownerID) + KeySeparator + escapeKeyPart(clientID)
}

// SplitKey recovers the (owner, client) pair a key was derived from.
func SplitKey(id string) (ownerID, clientID string, err error) {
	sep := strings.Index(id, KeySeparator)
	if sep < 0 {
		return "", "", ErrMalformedKey
	}
	return unescapeKeyPart(id[:sep]), unescapeKeyPart(id[sep+1:]), nil
}
