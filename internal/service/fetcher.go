package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"average-calculator/internal/repository"
)

//go:generate mockgen -destination=mocks/fetcher.go -package=mocks average-calculator/internal/service Fetcher

const maxPayloadBytes = 1 << 20

// FetchReason says why a fetch came back empty. It is empty on success.
type FetchReason string

const (
	ReasonUnavailable FetchReason = "unavailable"
	ReasonMalformed   FetchReason = "malformed"
	ReasonTimeout     FetchReason = "timeout"
	ReasonCircuitOpen FetchReason = "circuit_open"
)

// FetchResult is the outcome of one upstream call. Numbers is never nil.
type FetchResult struct {
	Numbers []int64
	Reason  FetchReason
}

// OK reports whether the upstream answered with a usable payload.
func (r FetchResult) OK() bool {
	return r.Reason == ""
}

func failed(reason FetchReason) FetchResult {
	return FetchResult{Numbers: []int64{}, Reason: reason}
}

// Fetcher retrieves fresh numbers for a category. It never fails: any upstream
// problem is reported as an empty result with a Reason.
type Fetcher interface {
	Fetch(ctx context.Context, c repository.Category) FetchResult
}

// HTTPFetcher calls the upstream test server, one endpoint per category.
type HTTPFetcher struct {
	baseURL  string
	client   *http.Client
	breakers *CircuitBreakerPool
}

// bearerRoundTripper injects the upstream credential into every outgoing request.
type bearerRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (t *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

// NewHTTPFetcher builds a fetcher whose client gives up after timeout.
// breakers may be nil to call the upstream unconditionally.
func NewHTTPFetcher(baseURL, token string, timeout time.Duration, breakers *CircuitBreakerPool) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: &bearerRoundTripper{base: http.DefaultTransport, token: token},
		},
		breakers: breakers,
	}
}

type fetchError struct {
	reason FetchReason
	err    error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, c repository.Category) FetchResult {
	if !c.Valid() {
		return failed(ReasonMalformed)
	}

	var numbers []int64
	call := func() error {
		var err error
		numbers, err = f.fetch(ctx, c)
		return err
	}

	var err error
	if cb := f.breakerFor(c); cb != nil {
		err = cb.Call(call)
	} else {
		err = call()
	}
	if err == nil {
		return FetchResult{Numbers: numbers}
	}

	var fe *fetchError
	switch {
	case errors.As(err, &fe):
		log.Debug().Err(fe.err).Str("category", c.Name()).Str("reason", string(fe.reason)).Msg("upstream fetch failed")
		return failed(fe.reason)
	case errors.Is(err, ErrCircuitBreakerOpen):
		log.Debug().Str("category", c.Name()).Msg("upstream circuit open, skipping fetch")
		return failed(ReasonCircuitOpen)
	default:
		log.Debug().Err(err).Str("category", c.Name()).Msg("upstream fetch failed")
		return failed(ReasonUnavailable)
	}
}

func (f *HTTPFetcher) breakerFor(c repository.Category) *CircuitBreaker {
	if f.breakers == nil {
		return nil
	}
	return f.breakers.Get(c)
}

func (f *HTTPFetcher) fetch(ctx context.Context, c repository.Category) ([]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+c.Endpoint(), nil)
	if err != nil {
		return nil, &fetchError{reason: ReasonUnavailable, err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &fetchError{reason: classify(err), err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return nil, &fetchError{reason: ReasonUnavailable, err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, &fetchError{reason: classify(err), err: err}
	}
	numbers, err := ParseNumbers(body)
	if err != nil {
		return nil, &fetchError{reason: ReasonMalformed, err: err}
	}
	return numbers, nil
}

func classify(err error) FetchReason {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return ReasonTimeout
	}
	return ReasonUnavailable
}

// ParseNumbers extracts the integer "numbers" array from an upstream payload.
// Integer-valued literals such as 2.0 or 1e2 are accepted. A missing or null
// field yields an empty slice; anything else that is not an array of integers
// within int64 range is an error.
func ParseNumbers(body []byte) ([]int64, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errors.New("payload is not an object")
	}
	field := root.Get("numbers")
	if !field.Exists() || field.Type == gjson.Null {
		return []int64{}, nil
	}
	if !field.IsArray() {
		return nil, fmt.Errorf("numbers is %s, not an array", field.Type)
	}
	items := field.Array()
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.Number {
			return nil, fmt.Errorf("non-numeric element %s", item.Raw)
		}
		v, ok := integerValue(item)
		if !ok {
			return nil, fmt.Errorf("non-integer element %s", item.Raw)
		}
		out = append(out, v)
	}
	return out, nil
}

// integerValue reads a JSON number as int64 when it denotes a whole number in range.
func integerValue(item gjson.Result) (int64, bool) {
	if v, err := strconv.ParseInt(item.Raw, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(item.Raw, 64)
	if err != nil || math.Trunc(f) != f || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
