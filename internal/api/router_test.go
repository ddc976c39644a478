package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/internal/api/handlers"
	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/memstore"
	"github.com/trueequity/backend/internal/s0_data/quality"
	"github.com/trueequity/backend/pkg/logger"
	"github.com/trueequity/backend/pkg/redis"
)

var now = time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)

type fakeIndicators struct {
	snap *contracts.IndicatorSnapshot
	err  error
	tfs  []contracts.Timeframe
}

func (f *fakeIndicators) Get(ctx context.Context, symbol string, tf contracts.Timeframe) (*contracts.IndicatorSnapshot, error) {
	f.tfs = append(f.tfs, tf)
	if f.err != nil {
		return nil, f.err
	}
	snap := *f.snap
	snap.Symbol = symbol
	snap.Timeframe = tf
	return &snap, nil
}

type testServer struct {
	handler    http.Handler
	store      *memstore.Store
	indicators *fakeIndicators
	hub        *handlers.EventHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	clock := contracts.ClockFunc(func() time.Time { return now })
	store := memstore.New(clock)
	log := logger.NewNop()

	require.NoError(t, store.UpsertInstrument(ctx, contracts.Instrument{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ"}))
	for i := 0; i < 45; i++ {
		day := now.AddDate(0, 0, -i).Truncate(24 * time.Hour)
		price := decimal.NewFromInt(int64(150 + i))
		_, err := store.UpsertPriceBars(ctx, []contracts.PriceBar{{
			Symbol: "AAPL", Timestamp: day,
			Open: price, High: price.Add(decimal.NewFromInt(2)), Low: price.Sub(decimal.NewFromInt(1)), Close: price,
			Volume: 1000,
		}})
		require.NoError(t, err)
	}
	require.NoError(t, store.ReplaceScore(ctx, contracts.ScoreSnapshot{
		Symbol:       "AAPL",
		CalculatedAt: now,
		OverallScore: decimal.RequireFromString("92.5"),
		OverallGrade: contracts.GradeA,
	}))

	// a disabled client exercises the cache path without a server
	cache := redis.NewCache(redis.Disabled(), "trueequity")
	indicators := &fakeIndicators{snap: &contracts.IndicatorSnapshot{Date: now.Truncate(24 * time.Hour), RSI: decimal.RequireFromString("61.25")}}
	hub := handlers.NewEventHub(log)
	universe := func() []string { return []string{"AAPL", "MSFT"} }

	router := NewRouter(Handlers{
		Stock:  handlers.NewStockHandler(store, cache, clock, log),
		RSI:    handlers.NewRSIHandler(indicators, cache, log),
		Data:   handlers.NewDataHandler(quality.NewQualityGate(store, quality.DefaultConfig()), universe, clock, log),
		Events: hub,
	}, log)

	return &testServer{handler: router, store: store, indicators: indicators, hub: hub}
}

func (s *testServer) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, body := s.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRoutes_Status(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/stocks/AAPL", http.StatusOK},
		{"/api/stocks/aapl", http.StatusOK},
		{"/api/stocks/MSFT", http.StatusNotFound},
		{"/api/stocks/AAPL/prices", http.StatusOK},
		{"/api/stocks/AAPL/prices?days=0", http.StatusBadRequest},
		{"/api/stocks/AAPL/prices?days=abc", http.StatusBadRequest},
		{"/api/scores/AAPL", http.StatusOK},
		{"/api/scores/MSFT", http.StatusNotFound},
		{"/api/rsi/AAPL", http.StatusOK},
		{"/api/rsi/AAPL?timeframe=2h", http.StatusOK},
		{"/api/rsi/AAPL?timeframe=5m", http.StatusBadRequest},
		{"/api/data/quality", http.StatusOK},
		{"/api/data/universe", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, _ := s.get(t, tt.path)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGetStock(t *testing.T) {
	s := newTestServer(t)
	_, body := s.get(t, "/api/stocks/aapl")
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, "Apple Inc.", body["name"])
	assert.Equal(t, "NASDAQ", body["exchange"])
}

func TestGetPrices_Window(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/stocks/AAPL/prices", 30},
		{"/api/stocks/AAPL/prices?days=7", 7},
		{"/api/stocks/AAPL/prices?days=365", 45},
		{"/api/stocks/MSFT/prices", 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, body := s.get(t, tt.path)
			data, ok := body["data"].([]interface{})
			require.True(t, ok)
			assert.Len(t, data, tt.want)
		})
	}
}

func TestGetScore(t *testing.T) {
	s := newTestServer(t)
	_, body := s.get(t, "/api/scores/AAPL")
	assert.Equal(t, "92.5", body["overall_score"])
	assert.Equal(t, "A", body["overall_grade"])
}

func TestGetRSI(t *testing.T) {
	s := newTestServer(t)

	_, body := s.get(t, "/api/rsi/AAPL?timeframe=30M")
	assert.Equal(t, "61.25", body["rsi"])
	assert.Equal(t, "30m", body["timeframe"])

	s.get(t, "/api/rsi/AAPL")
	assert.Equal(t, []contracts.Timeframe{contracts.Timeframe30M, contracts.Timeframe1D}, s.indicators.tfs)
}

func TestGetRSI_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient history", contracts.ErrInsufficientData, http.StatusNotFound},
		{"provider failure", assert.AnError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.indicators.err = tt.err
			rec, _ := s.get(t, "/api/rsi/AAPL")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDataQuality(t *testing.T) {
	s := newTestServer(t)
	_, body := s.get(t, "/api/data/quality")

	snap, ok := body["snapshot"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, snap["total_stocks"])
	coverage := snap["coverage"].(map[string]interface{})
	assert.InDelta(t, 0.5, coverage["price"], 1e-9)
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.handler)
	defer server.Close()
	defer s.hub.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	var sink contracts.EventSink = s.hub
	sink.Publish(contracts.RefreshEvent{
		Symbol:  "AAPL",
		Kind:    contracts.KindScore,
		Outcome: contracts.OutcomeRefreshed,
		At:      now,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event contracts.RefreshEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "AAPL", event.Symbol)
	assert.Equal(t, contracts.KindScore, event.Kind)
	assert.Equal(t, contracts.OutcomeRefreshed, event.Outcome)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
