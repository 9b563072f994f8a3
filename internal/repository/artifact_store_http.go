package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	xhttp "FinScore/pkg/http"
	applogger "FinScore/pkg/logger"
)

// BreakerSettings tunes the circuit breaker around the blob endpoint.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// HTTPArtifactStore keeps artifacts in an object storage bucket reachable over REST
// (Supabase storage layout: /storage/v1/object/{bucket}/{key}).
type HTTPArtifactStore struct {
	baseURL string
	bucket  string
	apiKey  string
	client  *xhttp.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	l       *applogger.Logger
}

var _ domrepo.ArtifactStore = (*HTTPArtifactStore)(nil)

func NewHTTPArtifactStore(baseURL, bucket, apiKey string, client *xhttp.Client, bs BreakerSettings, l *applogger.Logger) *HTTPArtifactStore {
	if l == nil {
		l = applogger.NewNop()
	}
	if client == nil {
		client = xhttp.NewClient()
	}
	s := &HTTPArtifactStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		apiKey:  apiKey,
		client:  client,
		l:       l,
	}
	s.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "artifact-store",
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bs.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bs.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
		// a missing artifact is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, models.ErrArtifactNotFound)
		},
	})
	return s
}

func (s *HTTPArtifactStore) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), strings.Join(parts, "/"))
}

func (s *HTTPArtifactStore) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + s.apiKey,
		"apikey":        s.apiKey,
	}
}

func (s *HTTPArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.cb.Execute(func() ([]byte, error) {
		var body []byte
		err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     s.objectURL(key),
			Headers: s.headers(),
		}, &body)
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%s: %w", key, models.ErrArtifactNotFound)
			}
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrArtifactNotFound) {
			return nil, err
		}
		return nil, s.unavailable("get", key, err)
	}
	return data, nil
}

// Put uploads data, replacing any existing object.
func (s *HTTPArtifactStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.cb.Execute(func() ([]byte, error) {
		h := s.headers()
		h["Content-Type"] = "application/json"
		h["x-upsert"] = "true"
		return nil, s.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     s.objectURL(key),
			Headers: h,
			Body:    bytes.NewReader(data),
		}, nil)
	})
	if err != nil {
		return s.unavailable("put", key, err)
	}
	s.l.Debug("artifact uploaded", applogger.String("key", key), applogger.Int("bytes", len(data)))
	return nil
}

func (s *HTTPArtifactStore) unavailable(op, key string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.l.Warn("artifact store request rejected", applogger.String("op", op), applogger.String("key", key), applogger.Error(err))
	} else {
		s.l.Error("artifact store request failed", applogger.String("op", op), applogger.String("key", key), applogger.Error(err))
	}
	return &models.StoreUnavailableError{Op: "artifact " + op, Key: key, Err: err}
}

// Supabase answers a missing object with 404 or with 400 and a not_found body.
func isNotFound(err error) bool {
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusNotFound {
		return true
	}
	if se.StatusCode == http.StatusBadRequest {
		b := strings.ToLower(string(se.Body))
		return strings.Contains(b, "not_found") || strings.Contains(b, "not found")
	}
	return false
}
