package provider

import (
	"Tracklight/internal/api/config"
	"Tracklight/internal/model"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newSyndicationForTest(t *testing.T, handler http.HandlerFunc) *SyndicationClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSyndicationClient(config.SyndicationConfig{
		ProviderEndpoint: config.ProviderEndpoint{BaseURL: srv.URL, Timeout: time.Second},
	}, testUA)
}

func TestSyndicationFetchTweet(t *testing.T) {
	client := newSyndicationForTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tweet-result", r.URL.Path)
		require.Equal(t, "1790000000000000001", r.URL.Query().Get("id"))
		require.NotEmpty(t, r.URL.Query().Get("token"))
		require.Empty(t, r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"__typename":"Tweet","id_str":"1790000000000000001","favorite_count":321,"conversation_count":12,"quote_count":2}`))
	})

	res, err := client.FetchEntityMetrics(context.Background(), postRef("1790000000000000001"), nil)
	require.NoError(t, err)
	require.Equal(t, model.Counters{Likes: 321, Replies: 12, Quotes: 2}, res.Counters)
}

func TestSyndicationTombstoneIsNotFound(t *testing.T) {
	client := newSyndicationForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"__typename":"TweetTombstone","tombstone":{"text":{"text":"This Post was deleted"}}}`))
	})
	_, err := client.FetchEntityMetrics(context.Background(), postRef("1"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSyndicationEmptyObjectIsEmptyResult(t *testing.T) {
	client := newSyndicationForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	res, err := client.FetchEntityMetrics(context.Background(), postRef("1"), nil)
	require.NoError(t, err)
	require.Equal(t, model.Counters{}, res.Counters)
}

const profileHTML = `<!DOCTYPE html><html><head></head><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"timeline":{"entries":[
{"content":{"tweet":{"user":{"screen_name":"someone_else","followers_count":5,"friends_count":1}}}},
{"content":{"tweet":{"user":{"screen_name":"Creator_One","followers_count":48210,"friends_count":"512"}}}}
]}}}}</script></body></html>`

func TestSyndicationFetchProfileFromNextData(t *testing.T) {
	client := newSyndicationForTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/srv/timeline-profile/screen-name/creator_one", r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(profileHTML))
	})

	res, err := client.FetchEntityMetrics(context.Background(), profileRef("creator_one"), nil)
	require.NoError(t, err)
	require.Equal(t, model.Counters{Followers: 48210, Following: 512}, res.Counters)
}

func TestSyndicationProfileWithoutNextData(t *testing.T) {
	client := newSyndicationForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>rate limited</body></html>`))
	})
	_, err := client.FetchEntityMetrics(context.Background(), profileRef("creator_one"), nil)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSyndicationToken(t *testing.T) {
	token := syndicationToken("1790000000000000001")
	require.NotEmpty(t, token)
	require.False(t, strings.ContainsAny(token, "0."))
	require.Equal(t, token, syndicationToken("1790000000000000001"))
	require.Equal(t, "a", syndicationToken("not-a-number"))
}
