package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailscope/enrichment-gateway/internal/config"
)

// letaPayload builds a minimal SvelteKit data payload with one result per
// (title, link, snippet) triple.
func letaPayload(hits ...[3]string) string {
	// Layout: [ {success:1}, [idx...], hit objects..., value strings... ]
	data := []string{`{"success":1}`}
	indices := make([]int, len(hits))
	valueBase := 2 + len(hits)
	for i := range hits {
		indices[i] = 2 + i
	}
	indexArr := "["
	for i, idx := range indices {
		if i > 0 {
			indexArr += ","
		}
		indexArr += fmt.Sprintf("%d", idx)
	}
	indexArr += "]"
	data = append(data, indexArr)
	values := []string{}
	for i, hit := range hits {
		base := valueBase + i*3
		data = append(data, fmt.Sprintf(`{"title":%d,"link":%d,"snippet":%d}`, base, base+1, base+2))
		values = append(values, fmt.Sprintf("%q,%q,%q", hit[0], hit[1], hit[2]))
	}
	body := `{"nodes":[null,{"type":"other"},{"type":"data","data":[`
	for i, d := range data {
		if i > 0 {
			body += ","
		}
		body += d
	}
	for _, v := range values {
		body += "," + v
	}
	body += `]}]}`
	return body
}

func newTestClient(baseURL string) *Client {
	cfg := config.Default().Search
	cfg.BaseURL = baseURL
	return NewClient(cfg)
}

func TestLookup_DecodesResults(t *testing.T) {
	var gotQuery, gotEngine string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotEngine = r.URL.Query().Get("engine")
		fmt.Fprint(w, letaPayload(
			[3]string{"Example Corp", "https://example.com", "Example Corp — registered 2010"},
		))
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL).Lookup(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, "example.com", gotQuery)
	assert.Equal(t, "brave", gotEngine)
	require.Len(t, results, 1)
	assert.Equal(t, "Example Corp", results[0].Title)
	assert.Equal(t, "https://example.com", results[0].Link)
	assert.Equal(t, "Example Corp — registered 2010", results[0].Snippet)
}

func TestLookup_CapsAtMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, letaPayload(
			[3]string{"one", "l1", "s1"},
			[3]string{"two", "l2", "s2"},
			[3]string{"three", "l3", "s3"},
		))
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL).Lookup(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, config.DefaultMaxResults)
	assert.Equal(t, "one", results[0].Title)
	assert.Equal(t, "two", results[1].Title)
}

func TestLookup_MissingPointersDegrade(t *testing.T) {
	// Result object without a snippet pointer; link pointer out of range.
	body := `{"nodes":[{"type":"data","data":[{"success":1},[2],{"title":3,"link":99},"The Title"]}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL).Lookup(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "The Title", results[0].Title)
	assert.Equal(t, "Link not found", results[0].Link)
	assert.Equal(t, "Snippet not found", results[0].Snippet)
}

func TestLookup_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Lookup(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestLookup_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Lookup(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestLookup_ConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	_, err := newTestClient(srv.URL).Lookup(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestLookup_UndecodablePayloadIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"no data node", `{"nodes":[{"type":"other"}]}`},
		{"no indices", `{"nodes":[{"type":"data","data":[{"success":1},"just a string"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Lookup(context.Background(), "q")
			require.Error(t, err)
			assert.False(t, IsTransient(err))
		})
	}
}
