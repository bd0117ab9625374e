// Package contract decides which queued requests are still safe to replay
// and normalizes requests before they are queued.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bft-labs/wardsync/internal/domain"
)

// LocalMarker is the object key marking a reference to a device-local artifact.
const LocalMarker = "$local"

// localPrefixes are URL schemes that only resolve on the enqueuing device.
var localPrefixes = []string{"blob:", "file:", "content://"}

// mutatingMethods are the methods the queue accepts.
var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// hopHeaders are stripped at sanitization; the transport sets them itself.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Content-Length":      true,
	"Host":                true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Contract holds the current route table. The table can be swapped at
// runtime; each check reads one snapshot.
type Contract struct {
	routes atomic.Pointer[RouteTable]
	now    func() time.Time
}

// New creates a contract over routes. A nil table accepts every path.
func New(routes *RouteTable) *Contract {
	c := &Contract{now: time.Now}
	c.routes.Store(routes)
	return c
}

// SetRoutes replaces the route table.
func (c *Contract) SetRoutes(t *RouteTable) {
	c.routes.Store(t)
}

// Routes returns the current route table, or nil if every path is accepted.
func (c *Contract) Routes() *RouteTable {
	return c.routes.Load()
}

// IsQueueable reports whether req may be replayed: it uses a mutating method,
// targets a currently mounted route and references no device-local artifacts.
func (c *Contract) IsQueueable(req domain.QueuedRequest) bool {
	return c.Check(req) == nil
}

// Check is IsQueueable with the reason for a rejection.
func (c *Contract) Check(req domain.QueuedRequest) error {
	if req.ID == "" {
		return fmt.Errorf("%w: missing id", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("%w: missing url", domain.ErrInvalidRequest)
	}
	if !mutatingMethods[req.Method] {
		return fmt.Errorf("%w: method %q is not a mutation", domain.ErrInvalidRequest, req.Method)
	}
	if t := c.routes.Load(); t != nil && !t.Match(req.Method, req.URL) {
		return fmt.Errorf("%w: %s %s is not a mounted route", domain.ErrInvalidRequest, req.Method, req.URL)
	}
	if req.HasBody() {
		var v any
		if err := json.Unmarshal(req.Body, &v); err != nil {
			return fmt.Errorf("%w: body is not valid JSON", domain.ErrInvalidRequest)
		}
		if ref, ok := findLocalRef(v); ok {
			return fmt.Errorf("%w: body references local artifact %q", domain.ErrInvalidRequest, ref)
		}
	}
	return nil
}

// Sanitize turns a draft into a storable request: the method is upper-cased,
// the URL trimmed, unusable headers dropped and the body encoded as compact
// JSON. Fields that cannot be encoded are dropped. EnqueuedAt is stamped if
// the draft has none.
func (c *Contract) Sanitize(d domain.RequestDraft) (domain.QueuedRequest, error) {
	req := domain.QueuedRequest{
		ID:         strings.TrimSpace(d.ID),
		URL:        strings.TrimSpace(d.URL),
		Method:     strings.ToUpper(strings.TrimSpace(d.Method)),
		EnqueuedAt: d.EnqueuedAt.UTC(),
	}
	if req.URL == "" {
		return domain.QueuedRequest{}, fmt.Errorf("%w: missing url", domain.ErrInvalidRequest)
	}
	if req.Method == "" {
		return domain.QueuedRequest{}, fmt.Errorf("%w: missing method", domain.ErrInvalidRequest)
	}
	if d.EnqueuedAt.IsZero() {
		req.EnqueuedAt = c.now().UTC()
	}

	body, err := encodeBody(d.Body)
	if err != nil {
		return domain.QueuedRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	req.Body = body
	req.Headers = sanitizeHeaders(d.Headers)
	return req, nil
}

func sanitizeHeaders(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := http.CanonicalHeaderKey(strings.TrimSpace(k))
		if key == "" || hopHeaders[key] {
			continue
		}
		s, ok := headerValue(v)
		if !ok || s == "" {
			continue
		}
		out[key] = s
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func headerValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case []string:
		return strings.Join(x, ", "), true
	case bool:
		return strconv.FormatBool(x), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return "", false
	}
}

func encodeBody(body any) (json.RawMessage, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return compactOrString(b)
	case []byte:
		return compactOrString(b)
	case string:
		return compactOrString([]byte(b))
	}

	if raw, err := json.Marshal(body); err == nil {
		return raw, nil
	}
	// Retry without the parts encoding/json rejects.
	cleaned, ok := stripUnencodable(reflect.ValueOf(body))
	if !ok {
		return nil, fmt.Errorf("body of type %T cannot be encoded", body)
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("encode body: %v", err)
	}
	return raw, nil
}

// compactOrString keeps valid JSON (compacted) and encodes anything else as
// a JSON string.
func compactOrString(b []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	if json.Valid(b) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.Marshal(string(b))
}

// stripUnencodable walks maps and slices, dropping values that encoding/json
// cannot encode. It reports false if v itself is unencodable.
func stripUnencodable(v reflect.Value) (any, bool) {
	if !v.IsValid() {
		return nil, true
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, false
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, true
		}
		return stripUnencodable(v.Elem())
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if val, ok := stripUnencodable(iter.Value()); ok {
				out[iter.Key().String()] = val
			}
		}
		return out, true
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if val, ok := stripUnencodable(v.Index(i)); ok {
				out = append(out, val)
			}
		}
		return out, true
	}

	if !v.CanInterface() {
		return nil, false
	}
	x := v.Interface()
	if _, err := json.Marshal(x); err != nil {
		return nil, false
	}
	return x, true
}

// findLocalRef returns the first device-local reference inside a decoded
// JSON value.
func findLocalRef(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		for _, p := range localPrefixes {
			if strings.HasPrefix(x, p) {
				return x, true
			}
		}
	case map[string]any:
		if ref, ok := x[LocalMarker]; ok {
			return fmt.Sprint(ref), true
		}
		for _, val := range x {
			if ref, ok := findLocalRef(val); ok {
				return ref, true
			}
		}
	case []any:
		for _, val := range x {
			if ref, ok := findLocalRef(val); ok {
				return ref, true
			}
		}
	}
	return "", false
}
