// Package augment injects fetched context into a chat-completion request.
//
// DESIGN: The inbound payload must survive augmentation byte-for-byte except
// for the messages array itself, whatever unknown fields it carries. The new
// messages array is rebuilt from the raw bytes of the existing elements
// (gjson) and swapped in with a single sjson raw set, so model name, sampling
// parameters and any passthrough fields are untouched and existing messages
// keep their exact serialization. The input slice is never mutated.
package augment

import (
	"bytes"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mailscope/enrichment-gateway/internal/enrich"
	"github.com/mailscope/enrichment-gateway/internal/utils"
)

// contextPrefix opens the injected system message.
const contextPrefix = "Web context:\n"

// contextMessage is the message shape injected into the request.
type contextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Augment returns body with one system context message inserted immediately
// before the final user-turn message, built from the successful results in
// extraction order. When no lookup succeeded (or the body has no messages to
// anchor on) the original body is returned unchanged and enriched is false.
func Augment(body []byte, results []enrich.ContextResult) (out []byte, enriched bool) {
	summaries := make([]string, 0, len(results))
	for _, res := range results {
		if res.Success && res.Summary != "" {
			summaries = append(summaries, res.Summary)
		}
	}
	if len(summaries) == 0 {
		return body, false
	}

	messages := gjson.GetBytes(body, "messages")
	if !messages.IsArray() {
		return body, false
	}
	elements := messages.Array()
	if len(elements) == 0 {
		return body, false
	}

	msg := contextMessage{
		Role:    "system",
		Content: contextPrefix + joinSummaries(summaries),
	}
	raw, err := utils.MarshalNoEscape(msg)
	if err != nil {
		return body, false
	}

	rebuilt := rebuildMessages(elements, raw, insertIndex(elements))
	patched, err := sjson.SetRawBytesOptions(body, "messages", rebuilt,
		&sjson.Options{ReplaceInPlace: false})
	if err != nil {
		return body, false
	}
	return patched, true
}

// insertIndex returns the position of the final user-role message, or the end
// of the array when no user message exists.
func insertIndex(elements []gjson.Result) int {
	for i := len(elements) - 1; i >= 0; i-- {
		if elements[i].Get("role").String() == "user" {
			return i
		}
	}
	return len(elements)
}

// rebuildMessages reassembles the messages array from the raw bytes of each
// existing element, splicing raw in at position at.
func rebuildMessages(elements []gjson.Result, raw []byte, at int) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i <= len(elements); i++ {
		if i == at {
			if buf.Len() > 1 {
				buf.WriteByte(',')
			}
			buf.Write(raw)
		}
		if i == len(elements) {
			break
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.WriteString(elements[i].Raw)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// joinSummaries separates entity summaries with blank lines.
func joinSummaries(summaries []string) string {
	var b bytes.Buffer
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}
	return b.String()
}
