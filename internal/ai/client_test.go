package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/minicrm/internal/ai"
	"github.com/ignite/minicrm/internal/segment"
)

// completionServer returns an httptest server that replies with the given
// completion content, and captures the request body for assertions.
func completionServer(t *testing.T, status int, content string) (*httptest.Server, *map[string]any) {
	t.Helper()
	captured := &map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newClient(srv *httptest.Server) *ai.Client {
	return ai.NewClient("test-key", srv.Client()).WithBaseURL(srv.URL)
}

func TestExtractRules(t *testing.T) {
	srv, captured := completionServer(t, http.StatusOK,
		`{"totalSpend":{"$gte":5000},"lastActive":{"$lte":"2024-01-01T00:00:00Z"}}`)
	client := newClient(srv)

	rules, err := client.ExtractRules(context.Background(), "spent over 5k, inactive since new year")
	require.NoError(t, err)

	cond, ok := rules["totalSpend"]
	require.True(t, ok)
	assert.Equal(t, float64(5000), cond.Ops[segment.OpGte])
	assert.Contains(t, (*captured)["model"], "gpt-4o-mini")
}

func TestExtractRulesRequiresText(t *testing.T) {
	client := ai.NewClient("k", nil)
	_, err := client.ExtractRules(context.Background(), "   ")
	require.Error(t, err)
}

func TestExtractRulesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	client := newClient(srv)

	_, err := client.ExtractRules(context.Background(), "big spenders")
	assert.ErrorIs(t, err, ai.ErrUpstream)
}

func TestExtractRulesMalformedJSON(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, `not json at all`)
	client := newClient(srv)

	_, err := client.ExtractRules(context.Background(), "big spenders")
	assert.ErrorIs(t, err, ai.ErrMalformed)
}

func TestSuggestCopy(t *testing.T) {
	srv, captured := completionServer(t, http.StatusOK, `{"variants":[
		{"headline":"Come back!","channel":"sms","copy":"We miss you. 10% off today."},
		{"headline":"Your cart awaits","channel":"email","copy":"Finish checkout and save."}
	]}`)
	client := newClient(srv)

	variants, err := client.SuggestCopy(context.Background(), ai.CopyRequest{
		Objective: "winback lapsed customers",
		Channels:  []string{"sms", "email"},
	})
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "sms", variants[0].Channel)
	assert.Contains(t, (*captured)["model"], "gpt-4.1-mini")
}

func TestSuggestCopyRequiresObjective(t *testing.T) {
	client := ai.NewClient("k", nil)
	_, err := client.SuggestCopy(context.Background(), ai.CopyRequest{})
	require.Error(t, err)
}

func TestSuggestCopyRejectsTooFewVariants(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK,
		`{"variants":[{"headline":"One","channel":"sms","copy":"only one"}]}`)
	client := newClient(srv)

	_, err := client.SuggestCopy(context.Background(), ai.CopyRequest{Objective: "o"})
	assert.ErrorIs(t, err, ai.ErrMalformed)
}

func TestSuggestCopyRejectsUnknownChannel(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, `{"variants":[
		{"headline":"A","channel":"fax","copy":"x"},
		{"headline":"B","channel":"sms","copy":"y"}
	]}`)
	client := newClient(srv)

	_, err := client.SuggestCopy(context.Background(), ai.CopyRequest{
		Objective: "o",
		Channels:  []string{"sms"},
	})
	assert.ErrorIs(t, err, ai.ErrMalformed)
}

func TestSuggestCopyRejectsEmptyCopy(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, `{"variants":[
		{"headline":"A","channel":"sms","copy":"  "},
		{"headline":"B","channel":"sms","copy":"y"}
	]}`)
	client := newClient(srv)

	_, err := client.SuggestCopy(context.Background(), ai.CopyRequest{Objective: "o"})
	assert.ErrorIs(t, err, ai.ErrMalformed)
}

func TestSuggestCopyTruncatesToThree(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, `{"variants":[
		{"headline":"A","channel":"sms","copy":"a"},
		{"headline":"B","channel":"sms","copy":"b"},
		{"headline":"C","channel":"sms","copy":"c"},
		{"headline":"D","channel":"sms","copy":"d"}
	]}`)
	client := newClient(srv)

	variants, err := client.SuggestCopy(context.Background(), ai.CopyRequest{Objective: "o"})
	require.NoError(t, err)
	assert.Len(t, variants, 3)
}
