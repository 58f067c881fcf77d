package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spendy/internal/clock"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls int64
	delay time.Duration
	rates map[string]decimal.Decimal
	err   error
}

func (s *countingSource) Rates(_ context.Context, _ string) (map[string]decimal.Decimal, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

type stubLookup struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (s *stubLookup) Rate(context.Context, string, string) (decimal.Decimal, error) {
	s.calls++
	return s.rate, s.err
}

func TestHTTPProviderParsesRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v6/latest/USD", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"AED":3.6725,"eur":0.92}}`))
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL+"/", time.Second)
	rates, err := provider.Rates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "3.6725", rates["AED"].String())
	assert.Equal(t, "0.92", rates["EUR"].String())
}

func TestHTTPProviderMapsFailuresToUnavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"error result": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
		},
		"missing rates": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"success"}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()
			_, err := NewHTTPProvider(server.URL, time.Second).Rates(context.Background(), "USD")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrServiceUnavailable)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestHTTPProviderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"result":"success","rates":{}}`))
	}))
	defer server.Close()

	_, err := NewHTTPProvider(server.URL, 20*time.Millisecond).Rates(context.Background(), "USD")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestCacheHonoursTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	source := &countingSource{rates: map[string]decimal.Decimal{"AED": decimal.RequireFromString("3.6725")}}
	cache := NewCache(source, 10*time.Minute, clock.FuncClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		rate, err := cache.Rate(context.Background(), "usd", "aed")
		require.NoError(t, err)
		assert.Equal(t, "3.6725", rate.String())
	}
	assert.Equal(t, int64(1), source.calls)

	now = now.Add(10 * time.Minute)
	_, err := cache.Rate(context.Background(), "USD", "AED")
	require.NoError(t, err)
	assert.Equal(t, int64(2), source.calls)

	cache.Invalidate()
	_, err = cache.Rates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(3), source.calls)
}

func TestCacheSameCurrencySkipsSource(t *testing.T) {
	source := &countingSource{}
	cache := NewCache(source, time.Minute, nil)
	rate, err := cache.Rate(context.Background(), "AED", " aed ")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(0), source.calls)
}

func TestCacheUnsupportedCurrency(t *testing.T) {
	source := &countingSource{rates: map[string]decimal.Decimal{"AED": decimal.NewFromInt(3)}}
	cache := NewCache(source, time.Minute, clock.NewFixed(time.Now()))
	_, err := cache.Rate(context.Background(), "USD", "XYZ")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, errors.Is(err, ErrServiceUnavailable))
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	source := &countingSource{err: ErrServiceUnavailable}
	cache := NewCache(source, time.Minute, clock.NewFixed(time.Now()))
	_, err := cache.Rates(context.Background(), "USD")
	require.ErrorIs(t, err, ErrServiceUnavailable)
	_, err = cache.Rates(context.Background(), "USD")
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, int64(2), source.calls)
}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	source := &countingSource{
		delay: 50 * time.Millisecond,
		rates: map[string]decimal.Decimal{"AED": decimal.RequireFromString("3.67")},
	}
	cache := NewCache(source, time.Minute, clock.NewFixed(time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Rate(context.Background(), "USD", "AED")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&source.calls))
}

type gatedSource struct {
	calls   int64
	started chan struct{}
	release chan struct{}
}

func (s *gatedSource) Rates(ctx context.Context, _ string) (map[string]decimal.Decimal, error) {
	if atomic.AddInt64(&s.calls, 1) == 1 {
		close(s.started)
	}
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]decimal.Decimal{"AED": decimal.RequireFromString("3.6725")}, nil
}

func TestCacheCancelledCallerDoesNotFailOthers(t *testing.T) {
	source := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(source, time.Minute, clock.NewFixed(time.Now()))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Rate(first, "USD", "AED")
		firstErr <- err
	}()
	<-source.started

	type outcome struct {
		rate decimal.Decimal
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		rate, err := cache.Rate(context.Background(), "USD", "AED")
		second <- outcome{rate: rate, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(source.release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "3.6725", got.rate.String())
	assert.Equal(t, int64(1), atomic.LoadInt64(&source.calls))
}

func TestResolvePassThroughSameCurrency(t *testing.T) {
	lookup := &stubLookup{}
	resolver := NewResolver(lookup)
	amount := decimal.RequireFromString("-2.50")

	got, err := resolver.Resolve(context.Background(), amount, "AED", "aed")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount))
	assert.Equal(t, "AED", got.Currency)
	assert.False(t, got.OriginalAmount.Valid)
	assert.Nil(t, got.OriginalCurrency)
	assert.False(t, got.Rate.Valid)
	assert.False(t, got.Converted())
	assert.Equal(t, 0, lookup.calls)
}

func TestResolvePassThroughUnknownAccount(t *testing.T) {
	lookup := &stubLookup{}
	got, err := NewResolver(lookup).Resolve(context.Background(), decimal.NewFromInt(-21), "USD", "")
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
	assert.False(t, got.Converted())
	assert.Equal(t, 0, lookup.calls)
}

func TestResolveConverts(t *testing.T) {
	lookup := &stubLookup{rate: decimal.RequireFromString("3.6725")}
	got, err := NewResolver(lookup).Resolve(context.Background(), decimal.RequireFromString("-21.00"), "USD", "AED")
	require.NoError(t, err)
	assert.Equal(t, "-77.12", got.Amount.StringFixed(2))
	assert.Equal(t, "AED", got.Currency)
	assert.Equal(t, "-21.00", got.OriginalAmount.Decimal.StringFixed(2))
	assert.Equal(t, "USD", *got.OriginalCurrency)
	assert.Equal(t, "3.6725", got.Rate.Decimal.String())
	assert.True(t, got.Converted())
}

func TestResolveRoundsHalfUp(t *testing.T) {
	lookup := &stubLookup{rate: decimal.RequireFromString("0.5")}
	got, err := NewResolver(lookup).Resolve(context.Background(), decimal.RequireFromString("0.05"), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.03", got.Amount.StringFixed(2))
}

func TestResolvePropagatesRateErrors(t *testing.T) {
	lookup := &stubLookup{err: ErrServiceUnavailable}
	_, err := NewResolver(lookup).Resolve(context.Background(), decimal.NewFromInt(5), "USD", "AED")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}
