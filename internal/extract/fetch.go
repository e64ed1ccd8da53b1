package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// Fetcher retrieves a fully qualified URL. Failures are returned as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Resource, error)
}

// Resource is a successfully fetched response body.
type Resource struct {
	URL         string
	ContentType string
	Body        []byte
}

// Charset returns the charset parameter of the Content-Type header, or "".
func (r *Resource) Charset() string {
	if r.ContentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return ""
	}
	return strings.Trim(params["charset"], `"'`)
}

// Text decodes the body using the declared charset. Without a usable charset
// the body is taken to be UTF-8 and returned as is.
func (r *Resource) Text() string {
	text, _ := r.decodeText()
	return text
}

// decodeText is Text that also reports whether the bytes were transcoded from
// a non-UTF-8 charset. Any charset declared inside the content is stale then.
func (r *Resource) decodeText() (string, bool) {
	cs := r.Charset()
	if cs == "" {
		return string(r.Body), false
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return string(r.Body), false
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return string(r.Body), false
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(r.Body), enc.NewDecoder()))
	if err != nil {
		return string(r.Body), false
	}
	return string(decoded), true
}

// HTTPFetcher is the default Fetcher: a GET with a browser User-Agent,
// a per-request timeout, optional rate limiting and optional retries.
type HTTPFetcher struct {
	client     *http.Client
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	log        *logrus.Logger
}

// NewHTTPFetcher builds a fetcher from the timeout, user agent, rate and
// retry settings of cfg.
func NewHTTPFetcher(cfg *Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &HTTPFetcher{
		client:     &http.Client{Timeout: timeout},
		userAgent:  ua,
		limiter:    lim,
		maxRetries: cfg.Retries,
		log:        cfg.logger(),
	}
}

// retryDelay returns how long to wait before the next attempt.
// It honours the Retry-After header when present, otherwise uses
// exponential backoff capped at 60 s: 5 s, 10 s, 20 s, 40 s, 60 s, …
func retryDelay(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				d := time.Duration(secs) * time.Second
				if d > 120*time.Second {
					d = 120 * time.Second
				}
				return d
			}
		}
	}
	d := 5 * time.Second << uint(attempt)
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

// Fetch issues a GET for rawURL. Every failure is logged and returned as a
// *FetchError; Fetch never panics on network input.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	res, err := f.fetch(ctx, rawURL)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			entry := f.log.WithFields(logrus.Fields{"url": rawURL, "kind": fe.Kind.String()})
			if fe.Status != 0 {
				entry = entry.WithField("status", fe.Status)
			}
			entry.Errorf("fetch failed: %v", fe)
		}
		return nil, err
	}
	return res, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) (*Resource, error) {
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, classifyTransportError(rawURL, err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("User-Agent", f.userAgent)

		f.log.WithField("url", rawURL).Info("downloading external resource")
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, classifyTransportError(rawURL, err)
		}

		status := resp.StatusCode
		if status >= 200 && status < 300 {
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, classifyTransportError(rawURL, err)
			}
			return &Resource{
				URL:         rawURL,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        body,
			}, nil
		}

		if status == http.StatusNotFound {
			_ = resp.Body.Close()
			return nil, &FetchError{Kind: FetchNotFound, URL: rawURL, Status: status}
		}

		// Retriable: 429, 503, or any other 5xx
		retriable := status == http.StatusTooManyRequests ||
			status == http.StatusServiceUnavailable ||
			(status >= 500 && status < 600)

		if !retriable || attempt == f.maxRetries {
			_ = resp.Body.Close()
			return nil, &FetchError{Kind: FetchHTTPStatus, URL: rawURL, Status: status}
		}

		delay := retryDelay(attempt, resp)
		_ = resp.Body.Close()
		f.log.WithFields(logrus.Fields{"url": rawURL, "status": status, "delay": delay}).Warn("retrying")

		select {
		case <-ctx.Done():
			return nil, classifyTransportError(rawURL, ctx.Err())
		case <-time.After(delay):
		}
	}

	// Unreachable, but satisfies the compiler.
	return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: errors.New("exhausted retries")}
}

// classifyTransportError separates timeouts from other transport failures.
func classifyTransportError(rawURL string, err error) *FetchError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
	}
	return &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
}
