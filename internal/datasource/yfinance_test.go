package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartServer(t *testing.T, status int, body string, gotPath *string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotPath != nil {
			*gotPath = r.URL.EscapedPath()
		}
		if gotQuery != nil {
			*gotQuery = r.URL.RawQuery
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestYF(baseURL string) *YFinance {
	return NewYFinance(ChartOptions{BaseURL: baseURL, UserAgent: "Mozilla/5.0", Timeout: 5 * time.Second}, nil)
}

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"AAPL","currency":"USD"},
	"timestamp":[1700000000,1700086400,1700172800],
	"indicators":{"quote":[{"close":[189.5,null,191.25]},{"close":[1,2,3]}]}}],"error":null}}`

func TestFetchSeries(t *testing.T) {
	var path, query string
	srv := chartServer(t, http.StatusOK, chartBody, &path, &query)

	points, err := newTestYF(srv.URL).FetchSeries(context.Background(), "aapl", "", "")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", path)
	assert.Contains(t, query, "range=1y")
	assert.Contains(t, query, "interval=1d")

	require.Len(t, points, 3)
	assert.Equal(t, int64(1700000000), points[0].Timestamp)
	require.NotNil(t, points[0].Close)
	assert.Equal(t, 189.5, *points[0].Close, "closes come from the first quote series")
	assert.Nil(t, points[1].Close, "null close stays null")
	assert.Equal(t, 191.25, *points[2].Close)
	assert.True(t, points[0].Timestamp < points[1].Timestamp && points[1].Timestamp < points[2].Timestamp)
}

func TestFetchSeriesIndexSymbolIsEscaped(t *testing.T) {
	var path string
	srv := chartServer(t, http.StatusOK, chartBody, &path, nil)

	_, err := newTestYF(srv.URL).FetchSeries(context.Background(), "^YH311", "5y", "1wk")
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/%5EYH311", path)
}

func TestFetchSeriesMalformedBodies(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not json", http.StatusOK, `<html>oops</html>`},
		{"empty body", http.StatusOK, ``},
		{"missing chart", http.StatusOK, `{}`},
		{"empty result", http.StatusOK, `{"chart":{"result":[]}}`},
		{"null result", http.StatusOK, `{"chart":{"result":null}}`},
		{"missing quote", http.StatusOK, `{"chart":{"result":[{"timestamp":[1],"indicators":{}}]}}`},
		{"unknown symbol", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chartServer(t, tt.status, tt.body, nil, nil)
			points, err := newTestYF(srv.URL).FetchSeries(context.Background(), "ZZZZ", "1y", "1d")
			require.NoError(t, err, "no data is not an error")
			assert.NotNil(t, points)
			assert.Empty(t, points)
		})
	}
}

func TestFetchSeriesHTTPError(t *testing.T) {
	srv := chartServer(t, http.StatusTooManyRequests, `Too Many Requests`, nil, nil)

	_, err := newTestYF(srv.URL).FetchSeries(context.Background(), "AAPL", "1y", "1d")
	require.Error(t, err)

	var httpErr *ErrHTTP
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestFetchSeriesNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestYF(srv.URL).FetchSeries(context.Background(), "AAPL", "1y", "1d")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestZipClosesShorterWins(t *testing.T) {
	a, b := 1.0, 2.0
	tests := []struct {
		name   string
		ts     []int64
		closes []*float64
		want   int
	}{
		{"fewer closes", []int64{1, 2, 3}, []*float64{&a, &b}, 2},
		{"fewer timestamps", []int64{1}, []*float64{&a, &b}, 1},
		{"equal", []int64{1, 2}, []*float64{&a, &b}, 2},
		{"no timestamps", nil, []*float64{&a}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := zipCloses(tt.ts, tt.closes)
			require.Len(t, points, tt.want)
			for i, p := range points {
				assert.Equal(t, tt.ts[i], p.Timestamp)
				assert.Same(t, tt.closes[i], p.Close)
			}
		})
	}
}

func TestYFinanceName(t *testing.T) {
	yf := newTestYF("http://localhost")
	assert.Equal(t, "Yahoo Finance", yf.Name())
}
