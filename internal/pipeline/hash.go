package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ContextHash produces an order-independent hash over the four context
// fields. Events with equivalent contexts get the same hash regardless of
// the order previous tests were listed in, which is what groups candidates
// for preference pairing.
func ContextHash(productIdea, targetAudience, goal string, previousTests []string) string {
	tests := make([]string, 0, len(previousTests))
	for _, t := range previousTests {
		t = strings.TrimSpace(t)
		if t != "" {
			tests = append(tests, t)
		}
	}
	sort.Strings(tests)

	h := sha256.New()
	writeField := func(name, value string) {
		h.Write([]byte(name))
		h.Write([]byte{0x1f})
		h.Write([]byte(strings.TrimSpace(value)))
		h.Write([]byte{0x1e})
	}
	writeField("idea", productIdea)
	writeField("audience", targetAudience)
	writeField("goal", goal)
	for _, t := range tests {
		writeField("test", t)
	}
	return hex.EncodeToString(h.Sum(nil))
}
