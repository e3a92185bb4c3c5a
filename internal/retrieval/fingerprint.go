package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

// fingerprintEdge is how many bytes of the head and tail feed the fingerprint
const fingerprintEdge = 100

// Fingerprint derives a cheap content signature from total length plus the
// head and tail of the concatenated page text. Edits confined to the middle
// of a page with unchanged length are not detected.
func Fingerprint(parts []model.Part) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Content)
	}
	text := b.String()

	head, tail := text, text
	if len(text) > fingerprintEdge {
		head = text[:fingerprintEdge]
		tail = text[len(text)-fingerprintEdge:]
	}

	sum := sha256.Sum256([]byte(strconv.Itoa(len(text)) + "\x00" + head + "\x00" + tail))
	return hex.EncodeToString(sum[:8])
}
