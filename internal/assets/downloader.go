package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"messaging/internal/constants"
	"messaging/internal/logger"
	"messaging/pkg/circuitbreaker"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/metrics"
	"messaging/pkg/retry"
)

// maxAssetSize caps a single downloaded asset.
const maxAssetSize = 10 << 20

type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type HTTPDownloader struct {
	client  *http.Client
	breaker *circuitbreaker.Wrapper
	policy  retry.Policy
	logger  logger.Logger
}

func NewHTTPDownloader(client *http.Client, breaker *circuitbreaker.Wrapper, policy retry.Policy, log logger.Logger) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultDownloadTimeout}
	}
	if breaker == nil {
		breaker = circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("asset-downloader"))
	}
	return &HTTPDownloader{
		client:  client,
		breaker: breaker,
		policy:  retry.DefaultPolicy().Merge(policy),
		logger:  log,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	var body []byte

	err := retry.RetryWithCallback(ctx, d.policy, func() error {
		if d.breaker.IsOpen() {
			return apperrors.ErrServiceUnavailable.
				WithMessage("asset downloads suspended").
				WithDetail("breaker", d.breaker.Name()).
				AsFatal()
		}
		return d.breaker.Run(ctx, func() error {
			data, err := d.fetch(ctx, url)
			if err != nil {
				return err
			}
			body = data
			return nil
		})
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("assets", "download").Inc()
		d.logger.DebugwCtx(ctx, "Retrying asset download",
			"url", url,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})

	metrics.ObserveAssetDownload(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (d *HTTPDownloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.ErrValidation.WithCause(err).WithDetail("url", url)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable.WithCause(err).WithDetail("url", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperrors.ErrServiceUnavailable.
			WithMessage(fmt.Sprintf("asset server returned %d", resp.StatusCode)).
			WithDetail("url", url)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, apperrors.ErrNotFound.
			WithMessage(fmt.Sprintf("asset request returned %d", resp.StatusCode)).
			WithDetail("url", url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable.WithCause(err).WithDetail("url", url)
	}
	if len(data) > maxAssetSize {
		return nil, apperrors.ErrValidation.WithMessage("asset exceeds size limit").WithDetail("url", url)
	}
	return data, nil
}
