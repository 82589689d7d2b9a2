// Package extraction calls the external document-intelligence service
// used when local statement parsing comes back with low confidence.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/config"
)

// Extractor converts raw statement bytes into text.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Client is the HTTP extractor. A circuit breaker sits in front of the
// remote call so a flapping service fails fast instead of burning the
// whole request timeout on every import.
type Client struct {
	cfg     config.ExtractionConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewClient builds the extraction client from configuration.
func NewClient(cfg config.ExtractionConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "document-extraction",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		log: log,
	}
}

type extractResponse struct {
	Text string `json:"text"`
}

// ExtractText sends the document to the extraction service and returns
// the recovered text. Failure modes are distinguishable: unconfigured
// service, timeout, network failure, and a response with no usable text.
// There is no secondary fallback behind this call.
func (c *Client) ExtractText(ctx context.Context, data []byte) (string, error) {
	if !c.cfg.Configured() {
		return "", apperr.NewBusiness(apperr.CodeServiceNotConfigured,
			"document extraction service is not configured")
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.extract(ctx, data)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", apperr.NewTransient("extraction call", false, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Client) extract(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/extract", bytes.NewReader(data))
	if err != nil {
		return "", apperr.NewTransient("extraction request", false, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || isTimeout(err)
		c.log.Warn("extraction call failed",
			zap.Bool("timeout", timeout), zap.Error(err))
		return "", apperr.NewTransient("extraction call", timeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("extraction service returned error status",
			zap.Int("status", resp.StatusCode))
		return "", apperr.NewTransient("extraction call", false,
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperr.NewValidation("extraction response", "", "undecodable body: "+err.Error())
	}
	if parsed.Text == "" {
		return "", apperr.NewValidation("extraction response", "", "service returned no usable text")
	}
	return parsed.Text, nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
