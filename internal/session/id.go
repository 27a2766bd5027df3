package session

import (
	"crypto/sha256"
	"strings"

	"github.com/google/uuid"
)

var phoneNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("receptionist-agent/session/phone"))

// IDFromPhone derives a stable session id for messaging channels, where the
// only conversation key is the sender's phone number. The tenant is part of the
// hash so one phone never shares ownership state across businesses.
func IDFromPhone(tenantID, phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	name := strings.ToLower(strings.TrimSpace(tenantID)) + ":" + digits.String()
	return uuid.NewHash(sha256.New(), phoneNamespace, []byte(name), 5).String()
}
