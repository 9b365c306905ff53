package ai

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"google.golang.org/api/googleapi"

	"resumematch/internal/errors"
)

// Verdict is the outcome of one request attempt.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictRetryable
	VerdictFatal
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictRetryable:
		return "retryable"
	case VerdictFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classification explains a Verdict. Reason is set for retryable attempts,
// Err for fatal ones.
type Classification struct {
	Verdict Verdict
	Reason  string
	Err     error
}

// Classify decides what to do with the result of one attempt:
//
//	2xx                      success
//	429, >=500               retry
//	other status             fatal ApiError carrying the status
//	transport error          retry, except certificate verification
//	                         failures which are fatal
//
// Cancellation of the caller's context is handled by checkRetry; a
// per-attempt timeout is an ordinary transport error.
func Classify(resp *http.Response, err error) Classification {
	if err != nil {
		if isCertificateError(err) {
			return Classification{
				Verdict: VerdictFatal,
				Err:     errors.NewAPIError(errors.ErrCodeRequestFailed, errors.MsgInsecureConnection, 0, err),
			}
		}
		return Classification{Verdict: VerdictRetryable, Reason: "transport: " + err.Error()}
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return Classification{Verdict: VerdictSuccess}
	case code == http.StatusTooManyRequests, code >= 500:
		return Classification{Verdict: VerdictRetryable, Reason: fmt.Sprintf("status %d", code)}
	default:
		return Classification{
			Verdict: VerdictFatal,
			Err:     errors.NewAPIError(errors.ErrCodeAPIStatus, fmt.Sprintf(errors.MsgAPIStatus, code), code, nil),
		}
	}
}

// isCallerCancellation reports whether err is the bare context error that
// checkRetry returns once the caller's context is done.
func isCallerCancellation(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return stderrors.As(err, &verifyErr) ||
		stderrors.As(err, &unknownAuth) ||
		stderrors.As(err, &hostErr) ||
		stderrors.As(err, &invalidErr)
}

// checkRetry adapts Classify to the retryablehttp driver. A fatal verdict
// stops the loop and reaches errorHandler as checkErr.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}

	c := Classify(resp, err)
	switch c.Verdict {
	case VerdictSuccess:
		return false, nil
	case VerdictRetryable:
		return true, nil
	default:
		return false, c.Err
	}
}

// ExponentialBackoff waits min, 2*min, 4*min... capped at max. Retry-After
// headers are ignored so that the schedule stays predictable.
func ExponentialBackoff(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
	wait := float64(min) * math.Pow(2, float64(attemptNum))
	if wait > float64(max) || math.IsInf(wait, 0) {
		return max
	}
	return time.Duration(wait)
}

// errorHandler turns the final state of the retry loop into an AppError.
func errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	status := 0
	var apiDetail error
	if resp != nil {
		status = resp.StatusCode
		apiDetail = googleapi.CheckResponse(resp)
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	if appErr, ok := errors.AsAppError(err); ok {
		if appErr.Cause == nil && apiDetail != nil {
			appErr.Cause = apiDetail
		}
		return nil, appErr.WithContext("attempts", numTries)
	}

	if isCallerCancellation(err) {
		return nil, err
	}

	cause := err
	if cause == nil {
		cause = apiDetail
	}
	return nil, errors.NewAPIError(errors.ErrCodeRetriesExhausted, errors.MsgRetriesExhausted, status, cause).
		WithContext("attempts", numTries)
}

// newRetryClient builds the bounded-backoff driver around httpClient.
func newRetryClient(httpClient *http.Client, maxRetries int, waitMin, waitMax time.Duration, backoff retryablehttp.Backoff) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = httpClient
	// The request URL carries the API key; logging goes through the hooks.
	client.Logger = nil
	client.RetryMax = maxRetries
	client.RetryWaitMin = waitMin
	client.RetryWaitMax = waitMax
	client.CheckRetry = checkRetry
	client.Backoff = backoff
	client.ErrorHandler = errorHandler
	return client
}
