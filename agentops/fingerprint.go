package agentops

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// fingerprint derives a stable Idea.ID from its text and generation order,
// so the same idea text at the same position always gets the same ID across
// retried batches.
func fingerprint(text string, orderIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", orderIndex, text)))
	return hex.EncodeToString(sum[:8])
}
