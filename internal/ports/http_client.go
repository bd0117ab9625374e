package ports

import "net/http"

// HTTPClient is the transport used by the replayer and the connectivity probe.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
