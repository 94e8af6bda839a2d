package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key builds the deterministic cache key for a structured-output request:
// sha256(schema_id ∥ model ∥ temperature ∥ system_instruction ∥ normalized_prompt)
// per spec.md §4.D.
func Key(schemaID, model string, temperature float32, systemPrompt, prompt string) string {
	normalized := strings.Join(strings.Fields(prompt), " ")
	input := fmt.Sprintf("%s\x00%s\x00%.3f\x00%s\x00%s", schemaID, model, temperature, systemPrompt, normalized)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
