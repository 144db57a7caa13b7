package utils

import "github.com/google/uuid"

// NewSessionID returns a random UUID identifying one Start...teardown lifetime
// in logs and host events.
func NewSessionID() string {
	return uuid.NewString()
}

// UUIDv5 generates a deterministic UUID v5 from the given name using the URL
// namespace.
func UUIDv5(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
