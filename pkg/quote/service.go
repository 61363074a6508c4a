package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"bridgepay/pkg/logger"
	"bridgepay/pkg/types"
)

// ErrSuperseded is returned to a caller whose quote request was overtaken
// by a newer one before it completed. The stale result is discarded and
// never stored.
var ErrSuperseded = errors.New("quote request superseded by a newer one")

// Service fetches fee/time estimates from the pricing backend. Quotes have
// no expiry timer: staleness is enforced structurally by Quote.Matches,
// not by a clock.
type Service struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger

	gen    atomic.Uint64
	mu     sync.Mutex
	latest *types.Quote
}

type quoteRequest struct {
	SourceChain      string `json:"sourceChain"`
	DestinationChain string `json:"destinationChain"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
}

type quoteResponse struct {
	EstimatedFee  string `json:"estimatedFee"`
	EstimatedTime string `json:"estimatedTime"`
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithLogger attaches a logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService builds a quote service against the given backend base URL.
func NewService(baseURL string, opts ...Option) *Service {
	s := &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logger.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote fetches an estimate for the given selection. Issuing a new call
// supersedes any in-flight prior one: the older caller gets ErrSuperseded
// and its late response never overwrites newer state.
func (s *Service) Quote(ctx context.Context, sourceChain, destChain string, token types.Token, amount string) (*types.Quote, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil || amt.Sign() <= 0 {
		return nil, types.NewQuoteUnavailable("quote requires a positive amount", err)
	}
	if sourceChain == "" || destChain == "" {
		return nil, types.NewQuoteUnavailable("quote requires source and destination chains", nil)
	}
	if sourceChain == destChain {
		return nil, types.NewQuoteUnavailable("source and destination chains must differ", nil)
	}

	gen := s.gen.Add(1)

	resp, err := s.fetch(ctx, quoteRequest{
		SourceChain:      sourceChain,
		DestinationChain: destChain,
		Token:            string(token),
		Amount:           amount,
	})
	if err != nil {
		return nil, types.NewQuoteUnavailable("pricing backend unavailable", err)
	}

	q := &types.Quote{
		SourceChain:        sourceChain,
		DestinationChain:   destChain,
		Token:              token,
		Amount:             amount,
		EstimatedFeeNative: resp.EstimatedFee,
		EstimatedTimeLabel: resp.EstimatedTime,
		IssuedAt:           time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen.Load() != gen {
		s.log.Debug("discarding stale quote response", "generation", gen)
		return nil, ErrSuperseded
	}
	s.latest = q
	return q, nil
}

// Latest returns the most recently issued quote, or nil.
func (s *Service) Latest() *types.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Invalidate discards the current quote. Called whenever any defining
// field of the user's selection changes.
func (s *Service) Invalidate() {
	s.gen.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
}

func (s *Service) fetch(ctx context.Context, reqBody quoteRequest) (*quoteResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/bridge/quote", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface the backend's message when it sends one.
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(bodyBytes) > 0 {
			var errorResp map[string]interface{}
			if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
				if message, ok := errorResp["message"].(string); ok {
					return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, message)
				}
			}
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
		}
		return nil, fmt.Errorf("API returned status code %d", resp.StatusCode)
	}

	var out quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	return &out, nil
}
