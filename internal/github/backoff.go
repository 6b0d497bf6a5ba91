package github

import (
	"context"
	"errors"
	"net/http"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/rs/zerolog/log"
)

// Backoff decides whether and how long to wait before retrying a failed
// request.
type Backoff struct {
	// MaxAttempts bounds the total number of tries, the first included.
	MaxAttempts int
	// BaseDelay is doubled on every retry of a transient failure.
	BaseDelay time.Duration
	// MaxWait caps any single wait. A rate limit that resets later than
	// this fails immediately instead of stalling the report.
	MaxWait time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff returns the policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{MaxAttempts: 3, BaseDelay: 300 * time.Millisecond, MaxWait: 15 * time.Minute}
}

func (b Backoff) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

func (b Backoff) wait(ctx context.Context, d time.Duration) error {
	if b.sleep != nil {
		return b.sleep(ctx, d)
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

func (b Backoff) exponential(attempt int) time.Duration {
	return b.BaseDelay * time.Duration(1<<attempt)
}

// Delay returns how long to wait before retry number attempt+1 after err,
// and false when err must not be retried.
func (b Backoff) Delay(attempt int, err error) (time.Duration, bool) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var d time.Duration
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	var respErr *gh.ErrorResponse

	switch {
	case errors.As(err, &rateErr):
		d = rateErr.Rate.Reset.Time.Sub(b.clock()) + time.Second
		if d < 0 {
			d = 0
		}
	case errors.As(err, &abuseErr):
		if abuseErr.RetryAfter != nil {
			d = *abuseErr.RetryAfter
		} else {
			d = b.exponential(attempt)
		}
	case errors.As(err, &respErr):
		if respErr.Response == nil {
			return 0, false
		}
		code := respErr.Response.StatusCode
		if code != http.StatusTooManyRequests && code < 500 {
			return 0, false
		}
		d = b.exponential(attempt)
	default:
		// Transport failures carry no status and are worth another try.
		d = b.exponential(attempt)
	}

	if b.MaxWait > 0 && d > b.MaxWait {
		return d, false
	}
	return d, true
}

// retry runs op until it succeeds, fails permanently or runs out of
// attempts. Failures are reported as *SourceFetchError.
func retry[T any](ctx context.Context, b Backoff, fe SourceFetchError, op func() (T, *gh.Response, error)) (T, *gh.Response, error) {
	attempts := max(b.MaxAttempts, 1)

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, resp, err := op()
		if err == nil {
			logRate(resp)
			return v, resp, nil
		}
		lastErr = err

		d, ok := b.Delay(attempt, err)
		if !ok || attempt == attempts-1 {
			fe.Attempts = attempt + 1
			break
		}

		log.Warn().Err(err).Str("op", fe.Op).Str("repo", fe.Repo).Int("attempt", attempt+1).Dur("wait", d).Msg("Request failed, backing off")
		if err := b.wait(ctx, d); err != nil {
			lastErr = err
			fe.Attempts = attempt + 1
			break
		}
	}

	fe.Err = lastErr
	return zero, nil, &fe
}

func logRate(resp *gh.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	if resp.Rate.Remaining < resp.Rate.Limit/10 {
		log.Warn().Int("remaining", resp.Rate.Remaining).Int("limit", resp.Rate.Limit).Time("reset", resp.Rate.Reset.Time).Msg("API rate limit running low")
	}
}
