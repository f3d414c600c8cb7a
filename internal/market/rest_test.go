package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RestClientTestSuite struct {
	suite.Suite
	log *logger.Logger
}

func (s *RestClientTestSuite) SetupTest() {
	s.log = logger.NewNopLogger()
}

func (s *RestClientTestSuite) newClient(baseURL string) *RestClient {
	return NewRestClient(RestClientConfig{BaseURL: baseURL}, s.log)
}

// arrayKlines renders count rows in the [ts, o, h, l, c, v] encoding,
// newest first, to exercise the chronological re-sort.
func arrayKlines(count int) []byte {
	rows := make([][]any, 0, count)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := count - 1; i >= 0; i-- {
		ts := base.Add(time.Duration(i) * time.Minute).UnixMilli()
		rows = append(rows, []any{
			fmt.Sprintf("%d", ts), "100.0", "101.0", "99.0", "100.5", "12.0",
		})
	}

	body, _ := json.Marshal(map[string]any{"data": rows})

	return body
}

// objectKlines renders count rows as keyed objects inside a bare array.
func objectKlines(count int) []byte {
	type row struct {
		Open  float64 `json:"open"`
		High  float64 `json:"high"`
		Low   float64 `json:"low"`
		Close float64 `json:"close"`
		Vol   float64 `json:"v"`
		Time  int64   `json:"t"`
	}

	rows := make([]row, 0, count)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		rows = append(rows, row{
			Open:  100,
			High:  101,
			Low:   99,
			Close: 100.5,
			Vol:   12,
			Time:  base.Add(time.Duration(i) * time.Minute).UnixMilli(),
		})
	}

	body, _ := json.Marshal(rows)

	return body
}

func (s *RestClientTestSuite) TestFetchCandlesArrayShape() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(arrayKlines(120))
	}))
	defer server.Close()

	candles, err := s.newClient(server.URL).FetchCandles(context.Background(), "BTCUSDT", 1, 120)
	s.Require().NoError(err)
	s.Require().Len(candles, 120)

	// rows arrived newest first, parser must re-sort chronologically
	s.True(candles[0].Time.Before(candles[1].Time))
	s.Equal(100.5, candles[0].Close)
	s.Equal(12.0, candles[0].Volume)
}

func (s *RestClientTestSuite) TestFetchCandlesObjectShape() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(objectKlines(150))
	}))
	defer server.Close()

	candles, err := s.newClient(server.URL).FetchCandles(context.Background(), "ETHUSDT", 1, 150)
	s.Require().NoError(err)
	s.Require().Len(candles, 150)
	s.Equal(101.0, candles[0].High)
	s.Equal(99.0, candles[0].Low)
}

func (s *RestClientTestSuite) TestFetchCandlesFallsBackToNextShape() {
	var hits []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)

		if r.URL.Path == "/api/mix/v1/market/candles" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		w.Write(arrayKlines(110))
	}))
	defer server.Close()

	candles, err := s.newClient(server.URL).FetchCandles(context.Background(), "BTCUSDT", 5, 110)
	s.Require().NoError(err)
	s.Len(candles, 110)

	s.Require().GreaterOrEqual(len(hits), 2)
	s.Equal("/api/mix/v1/market/candles", hits[0])
	s.Equal("/api/spot/v1/market/candles", hits[1])
}

func (s *RestClientTestSuite) TestFetchCandlesRejectsShortHistory() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(arrayKlines(MinCandles - 1))
	}))
	defer server.Close()

	_, err := s.newClient(server.URL).FetchCandles(context.Background(), "BTCUSDT", 1, 200)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInsufficientHistory))
}

func (s *RestClientTestSuite) TestFetchCandlesUnreachableEndpoints() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := s.newClient(server.URL).FetchCandles(context.Background(), "BTCUSDT", 1, 200)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (s *RestClientTestSuite) TestListSymbolsFiltersAndCaches() {
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"symbol": "BTCUSDT"},
				{"symbol": "ETHUSDT"},
				{"symbol": "ETHBTC"},
				{"symbol": "SOLUSDT"},
			},
		})
	}))
	defer server.Close()

	client := s.newClient(server.URL)

	symbols, err := client.ListSymbols(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal([]string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, symbols)

	// second call inside the TTL must come from cache
	symbols, err = client.ListSymbols(context.Background(), 2)
	s.Require().NoError(err)
	s.Equal([]string{"BTCUSDT", "ETHUSDT"}, symbols)
	s.Equal(1, requests)
}

func (s *RestClientTestSuite) TestListSymbolsFallbackSet() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	symbols, err := s.newClient(server.URL).ListSymbols(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(fallbackSymbols, symbols)
}

func (s *RestClientTestSuite) TestMarkPriceShapes() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/mix/v1/market/ticker" {
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]string{"last": "43210.5"},
			})

			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"ticker": map[string]string{"last": "1.0"},
		})
	}))
	defer server.Close()

	price, err := s.newClient(server.URL).MarkPrice(context.Background(), "BTCUSDT")
	s.Require().NoError(err)
	s.Equal(43210.5, price)
}

func (s *RestClientTestSuite) TestMarkPriceSecondShape() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/mix/v1/market/ticker" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"ticker": map[string]string{"last": "250.25"},
		})
	}))
	defer server.Close()

	price, err := s.newClient(server.URL).MarkPrice(context.Background(), "SOLUSDT")
	s.Require().NoError(err)
	s.Equal(250.25, price)
}

func (s *RestClientTestSuite) TestMarkPriceUnavailable() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := s.newClient(server.URL).MarkPrice(context.Background(), "BTCUSDT")
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodePriceUnavailable))
}

func TestRestClientTestSuite(t *testing.T) {
	suite.Run(t, new(RestClientTestSuite))
}
