package custody

import (
	"errors"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single custody API call, polling excluded.
const DefaultTimeout = 30 * time.Second

// errRedirect is returned for any redirect: a stamp is only valid for the
// host it was sent to.
var errRedirect = errors.New("custody api redirects are not followed")

// NewHTTPClient returns the client used for custody API calls. A zero
// timeout selects DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	transport.ResponseHeaderTimeout = timeout * 2 / 3
	transport.ForceAttemptHTTP2 = true

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return errRedirect
		},
	}
}
