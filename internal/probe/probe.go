// Package probe issues HTTP requests against an app bound to a local port.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// RequestOptions are optional request settings. The zero value is a GET
// that follows redirects with no timeout beyond the caller's context.
type RequestOptions struct {
	Method     string
	Headers    map[string]string
	Body       []byte
	Timeout    time.Duration
	NoRedirect bool
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// URLFor builds http://localhost:<port><path>?<query>.
func URLFor(port int, path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{
		Scheme: "http",
		Host:   "localhost:" + strconv.Itoa(port),
	}
	// Keep any query already embedded in path.
	if i := strings.IndexByte(path, '?'); i >= 0 {
		u.Path = path[:i]
		u.RawQuery = path[i+1:]
	} else {
		u.Path = path
	}
	if len(query) > 0 {
		if u.RawQuery != "" {
			u.RawQuery += "&"
		}
		u.RawQuery += query.Encode()
	}
	return u.String()
}

// FetchViaHTTP requests path on the local port and returns the raw
// response. Network failures are returned as-is; use IsConnRefused to tell
// "nothing is listening" apart from other errors.
func FetchViaHTTP(ctx context.Context, port int, path string, query url.Values, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	target := URLFor(port, path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, target, err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	// One connection per probe; the app under test is killed right after.
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	if opts.NoRedirect {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
		URL:    resp.Request.URL.String(),
	}, nil
}

// IsConnRefused reports whether err means nothing was listening.
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
