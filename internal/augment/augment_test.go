package augment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mailscope/enrichment-gateway/internal/enrich"
	"github.com/mailscope/enrichment-gateway/internal/extract"
)

func okResult(value, summary string) enrich.ContextResult {
	return enrich.ContextResult{
		Entity:  extract.Entity{Kind: extract.KindDomain, Value: value},
		Summary: summary,
		Success: true,
	}
}

func failedResult(value string) enrich.ContextResult {
	return enrich.ContextResult{
		Entity: extract.Entity{Kind: extract.KindDomain, Value: value},
	}
}

func TestAugment_NoSuccessIsNoOp(t *testing.T) {
	body := []byte(`{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`)

	out, enriched := Augment(body, []enrich.ContextResult{failedResult("example.com")})

	assert.False(t, enriched)
	assert.Equal(t, body, out)
}

func TestAugment_NoResultsIsNoOp(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hi"}]}`)

	out, enriched := Augment(body, nil)

	assert.False(t, enriched)
	assert.Equal(t, body, out)
}

func TestAugment_InsertsBeforeFinalUserMessage(t *testing.T) {
	body := []byte(`{"messages":[` +
		`{"role":"system","content":"you classify spam"},` +
		`{"role":"user","content":"From: <a@example.com>"}]}`)

	out, enriched := Augment(body, []enrich.ContextResult{okResult("example.com", "Example Corp")})
	require.True(t, enriched)

	msgs := gjson.GetBytes(out, "messages").Array()
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, "you classify spam", msgs[0].Get("content").String())
	assert.Equal(t, "system", msgs[1].Get("role").String())
	assert.Equal(t, "Web context:\nExample Corp", msgs[1].Get("content").String())
	assert.Equal(t, "user", msgs[2].Get("role").String())
}

func TestAugment_NoUserMessageAppendsAtEnd(t *testing.T) {
	body := []byte(`{"messages":[{"role":"system","content":"s"}]}`)

	out, enriched := Augment(body, []enrich.ContextResult{okResult("example.com", "ctx")})
	require.True(t, enriched)

	msgs := gjson.GetBytes(out, "messages").Array()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Web context:\nctx", msgs[1].Get("content").String())
}

func TestAugment_SummariesKeepExtractionOrder(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"x"}]}`)

	// Results arrive in extraction order even when fetches completed reversed;
	// the middle one failed.
	results := []enrich.ContextResult{
		okResult("one.example", "summary one"),
		failedResult("two.example"),
		okResult("three.example", "summary three"),
	}

	out, enriched := Augment(body, results)
	require.True(t, enriched)

	content := gjson.GetBytes(out, "messages.0.content").String()
	assert.Equal(t, "Web context:\nsummary one\n\nsummary three", content)
}

func TestAugment_PassthroughFieldsPreservedByteForByte(t *testing.T) {
	// Odd spacing and number formatting must survive exactly.
	body := []byte(`{"model":"llama3:8b","temperature":0.7300,"top_p":1e-1,` +
		`"messages":[{"role":"user","content":"From: <a@example.com>"}],` +
		`"metadata":{"client":"smtpd","trace":[1,2,3]}}`)

	out, enriched := Augment(body, []enrich.ContextResult{okResult("example.com", "ctx")})
	require.True(t, enriched)

	// Everything before and after the messages value is untouched.
	expected := `{"model":"llama3:8b","temperature":0.7300,"top_p":1e-1,` +
		`"messages":[{"role":"system","content":"Web context:\nctx"},` +
		`{"role":"user","content":"From: <a@example.com>"}],` +
		`"metadata":{"client":"smtpd","trace":[1,2,3]}}`
	assert.Equal(t, expected, string(out))
}

func TestAugment_DoesNotMutateInput(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"x"}]}`)
	original := string(body)

	_, enriched := Augment(body, []enrich.ContextResult{okResult("example.com", "ctx")})
	require.True(t, enriched)
	assert.Equal(t, original, string(body))
}

func TestAugment_ContentKeepsAngleBrackets(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"x"}]}`)

	out, enriched := Augment(body, []enrich.ContextResult{
		okResult("example.com", "Contact <sales@example.com>"),
	})
	require.True(t, enriched)

	raw := gjson.GetBytes(out, "messages.0.content").Raw
	assert.Contains(t, raw, "<sales@example.com>")
	assert.NotContains(t, raw, `\u003c`)
}
