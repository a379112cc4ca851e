// Package guidance obtains accounting guidance for an invoice from an
// external retrieval service. Retrieval is strictly best-effort: any failure
// degrades to a fixed fallback string instead of aborting voucher generation.
package guidance

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/msandnes/invoiceagent/internal/model"
)

// Fallback is returned whenever retrieval is unavailable or fails.
const Fallback = "Use standard expense and accounts payable entries with proper account codes."

// Retriever answers a free-text accounting question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// HTTPRetriever posts queries to a knowledge-retrieval endpoint.
type HTTPRetriever struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRetriever builds a retriever for the given endpoint.
func NewHTTPRetriever(endpoint string) *HTTPRetriever {
	return &HTTPRetriever{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *HTTPRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("retrieval returned %d", resp.StatusCode)
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Answer == "" {
		return "", fmt.Errorf("retrieval returned empty answer")
	}
	return out.Answer, nil
}

// Service wraps a Retriever with an optional redis cache. A nil retriever or
// nil cache are both valid; the service never fails.
type Service struct {
	retriever Retriever
	cache     *redis.Client
	ttl       time.Duration
	log       *logrus.Logger
}

// NewService constructs the guidance service.
func NewService(retriever Retriever, cache *redis.Client, ttl time.Duration, log *logrus.Logger) *Service {
	return &Service{retriever: retriever, cache: cache, ttl: ttl, log: log}
}

// Guidance returns accounting guidance for the invoice, or the fallback.
func (s *Service) Guidance(ctx context.Context, inv model.Invoice) string {
	if s.retriever == nil {
		return Fallback
	}
	query := buildQuery(inv)
	key := cacheKey(query)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil && cached != "" {
			return cached
		}
	}

	answer, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		s.log.WithError(err).Warn("accounting guidance retrieval failed, using fallback")
		return Fallback
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, answer, s.ttl).Err(); err != nil {
			s.log.WithError(err).Debug("guidance cache write failed")
		}
	}
	return answer
}

func buildQuery(inv model.Invoice) string {
	descriptions := make([]string, 0, len(inv.Items))
	for _, item := range inv.Items {
		descriptions = append(descriptions, item.Description)
	}
	return fmt.Sprintf(
		"How should I create journal entries for an invoice from %s for %s totaling $%g? "+
			"What accounts should be debited and credited according to US GAAP? "+
			"Include account codes and ASC references.",
		inv.VendorName, strings.Join(descriptions, ", "), inv.Total)
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "guidance:" + hex.EncodeToString(sum[:])
}
