package azure

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/cenkalti/backoff/v4"
)

// Azure API retry constants
const (
	// MaxRetryElapsedTime is the maximum time to spend retrying a failed API call
	MaxRetryElapsedTime = 2 * time.Minute

	// InitialRetryInterval is the initial backoff interval for retries
	InitialRetryInterval = 1 * time.Second

	// MaxRetryInterval is the maximum backoff interval between retries
	MaxRetryInterval = 30 * time.Second
)

// RetryPolicy configures the exponential backoff around Azure calls
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	// CallTimeout bounds each attempt; zero means no per-attempt timeout
	CallTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used against the live Azure APIs
func DefaultRetryPolicy(callTimeout time.Duration) RetryPolicy {
	return RetryPolicy{
		InitialInterval: InitialRetryInterval,
		MaxInterval:     MaxRetryInterval,
		MaxElapsedTime:  MaxRetryElapsedTime,
		CallTimeout:     callTimeout,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// policy gives up
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = p.MaxElapsedTime

	operation := func() error {
		callCtx := ctx
		if p.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
			defer cancel()
		}
		err := op(callCtx)
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// Retryable reports whether an Azure call failing with err is worth retrying.
// Client errors other than throttling and timeouts are permanent.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusTooManyRequests,
			respErr.StatusCode == http.StatusRequestTimeout:
			return true
		case respErr.StatusCode >= 400 && respErr.StatusCode < 500:
			return false
		}
	}
	return true
}
