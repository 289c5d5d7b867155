package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 20

// ClassifyTransport maps a failed http.Client.Do to an *Error. The request
// URL is redacted first because provider keys travel in query strings.
func ClassifyTransport(provider string, err error) error {
	err = RedactURL(err)
	var ne net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return NewError(CategoryTimeout, provider, "request timed out", err)
	default:
		return NewError(CategoryProviderOutage, provider, "request failed", err)
	}
}

// RedactURL drops the query string and user info from a *url.Error so the
// error can be logged. Other errors are returned unchanged.
func RedactURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	clean := "[redacted]"
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		u.Fragment = ""
		clean = u.String()
	}
	return &url.Error{Op: ue.Op, URL: clean, Err: ue.Err}
}

// ClassifyStatus maps a non-2xx response to an *Error. It returns nil for 2xx.
func ClassifyStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return NewError(CategoryAuthentication, provider, msg, nil)
	case resp.StatusCode == http.StatusPaymentRequired:
		return NewError(CategoryQuotaExceeded, provider, msg, nil)
	case resp.StatusCode == http.StatusNotFound:
		return NewError(CategoryNotFound, provider, msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		e := NewError(CategoryRateLimited, provider, msg, nil)
		e.RetryAfter = retryAfter(resp.Header.Get("Retry-After"))
		return e
	case resp.StatusCode >= 500:
		return NewError(CategoryProviderOutage, provider, msg, nil)
	default:
		return NewError(CategoryBadData, provider, msg, nil)
	}
}

// ReadBody reads a bounded response body.
func ReadBody(provider string, resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, ClassifyTransport(provider, err)
	}
	return body, nil
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
