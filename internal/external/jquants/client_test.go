package jquants

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yshimizu/kabuscan/pkg/config"
	"github.com/yshimizu/kabuscan/pkg/httputil"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	log := logger.NewWithWriter(io.Discard)
	httpClient := httputil.New(log).DisableRetry()
	return NewClient(config.JQuantsConfig{
		RefreshToken: "refresh-token",
		BaseURL:      baseURL,
	}, httpClient, log)
}

func TestGetTokenCachesIDToken(t *testing.T) {
	var tokenCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/auth_refresh":
			atomic.AddInt32(&tokenCalls, 1)
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "refresh-token", r.URL.Query().Get("refreshtoken"))
			w.Write([]byte(`{"idToken":"id-token-1"}`))
		case "/listed/info":
			require.Equal(t, "Bearer id-token-1", r.Header.Get("Authorization"))
			w.Write([]byte(`{"info":[]}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	_, err := client.ListedInfo(ctx)
	require.NoError(t, err)
	_, err = client.ListedInfo(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls), "ID token should be exchanged once and cached")
}

func TestGetTokenMissingCredential(t *testing.T) {
	client := newTestClient("http://unused")
	client.cfg.RefreshToken = ""

	_, err := client.ListedInfo(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestListedInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/auth_refresh":
			w.Write([]byte(`{"idToken":"tok"}`))
		case "/listed/info":
			w.Write([]byte(`{"info":[
				{"Code":"72030","CompanyName":"トヨタ自動車","MarketCodeName":"プライム（内国株式）"},
				{"Code":"43850","CompanyName":"メルカリ","MarketCodeName":"グロース（内国株式）"}
			]}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	instruments, err := client.ListedInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, instruments, 2)

	assert.Equal(t, "72030", instruments[0].Code)
	assert.Equal(t, "トヨタ自動車", instruments[0].DisplayName)
	assert.Equal(t, "プライム（内国株式）", instruments[0].MarketSegmentName)
}

func TestDailyQuotesByDateNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/auth_refresh":
			w.Write([]byte(`{"idToken":"tok"}`))
		case "/prices/daily_quotes":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Data not found for the date"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.DailyQuotesByDate(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoData, "404 on a date query must map to ErrNoData")
}

func TestDailyQuotesByDateParsesVendorKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/auth_refresh":
			w.Write([]byte(`{"idToken":"tok"}`))
		case "/prices/daily_quotes":
			require.Equal(t, "20240104", r.URL.Query().Get("date"))
			w.Write([]byte(`{"daily_quotes":[
				{"Code":"72030","Date":"2024-01-04","O":2500,"H":2600,"L":2480,"C":2590,"V":12345678}
			]}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	quotes, err := client.DailyQuotesByDate(context.Background(), time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	bar := quotes[0].Bar()
	assert.Equal(t, "72030", bar.InstrumentCode)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), bar.Date)
	assert.Equal(t, 2500.0, bar.Open)
	assert.Equal(t, 2600.0, bar.High)
	assert.Equal(t, 2480.0, bar.Low)
	assert.Equal(t, 2590.0, bar.Close)
	assert.Equal(t, int64(12345678), bar.Volume)
}

func TestDailyQuotesByCodeNotFoundIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/auth_refresh":
			w.Write([]byte(`{"idToken":"tok"}`))
		case "/prices/daily_quotes":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	from := time.Date(2023, 10, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	quotes, err := client.DailyQuotesByCode(context.Background(), "72030", from, to)
	require.NoError(t, err, "not-found on a code query is an empty result, not an error")
	assert.Empty(t, quotes)
}

func TestDailyQuotesByCodeFollowsPagination(t *testing.T) {
	var quoteCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/auth_refresh":
			w.Write([]byte(`{"idToken":"tok"}`))
		case "/prices/daily_quotes":
			if atomic.AddInt32(&quoteCalls, 1) == 1 {
				assert.Empty(t, r.URL.Query().Get("pagination_key"))
				w.Write([]byte(`{"daily_quotes":[{"Code":"72030","Date":"2024-01-04","O":1,"H":2,"L":1,"C":2,"V":10}],"pagination_key":"page2"}`))
				return
			}
			assert.Equal(t, "page2", r.URL.Query().Get("pagination_key"))
			w.Write([]byte(`{"daily_quotes":[{"Code":"72030","Date":"2024-01-05","O":2,"H":3,"L":2,"C":3,"V":20}]}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	quotes, err := client.DailyQuotesByCode(context.Background(), "72030", from, to)
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&quoteCalls))
}

func TestGenericAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/auth_refresh":
			w.Write([]byte(`{"idToken":"tok"}`))
		case "/prices/daily_quotes":
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"The incoming token is invalid"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.DailyQuotesByDate(context.Background(), time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData), "non-404 failures must not look like not-found")
	assert.Contains(t, err.Error(), "The incoming token is invalid")
}
