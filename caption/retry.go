package caption

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryPolicy bounds automatic retries of transient failures.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the wait before the first retry; each retry doubles it.
	BaseDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries twice, waiting 1s then 2s, never more than 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
	}
}

// Delay returns the wait before the given retry (0-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < retry; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn, retrying while Classify reports the error as transient.
// The last error is returned once retries run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if !Classify(err) || attempt >= p.MaxRetries {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if serr := p.sleep(ctx, p.Delay(attempt)); serr != nil {
			return err
		}
	}
}

// statusCoder is implemented by HTTP client errors that carry a status code.
type statusCoder interface {
	HTTPStatus() int
}

var retryablePatterns = []string{
	"cors",
	"failed to fetch",
	"network",
	"service unavailable",
	"unavailable",
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"unexpected eof",
}

// Classify reports whether err is worth retrying. Classified errors decide by
// kind; HTTP status errors retry on 408, 429 and 5xx; everything else falls back
// to network error types and message signatures.
func Classify(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var ce *Error
	if errors.As(err, &ce) && ce.Kind != KindUnknown {
		return ce.Kind == KindTransient
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatus(); {
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
			return true
		case code >= 500:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
