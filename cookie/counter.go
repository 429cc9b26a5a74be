// Package cookie implements the client-held access counter.
//
// The count lives only in the cookie the client sends back; the server keeps no table.
package cookie

import (
	"strconv"
	"strings"

	"github.com/nczempin/httpd-go-uring/protocol"
)

const (
	DefaultName       = "cookie_counter_3776"
	DefaultMax        = 10
	DefaultTracked    = "index.html"
	cookieHeaderField = "Cookie"
)

// Counter derives the next visit count from request cookies
type Counter struct {
	Name    string
	Max     int
	Tracked string
}

// New returns a counter for the given ceiling using the default cookie name
// and tracked resource.
func New(max int) Counter {
	return Counter{Name: DefaultName, Max: max, Tracked: DefaultTracked}
}

// Next returns the count to send back for a request of resource.
//
//   - no usable counter cookie: 1
//   - resource is not the tracked one: the submitted value
//   - submitted value at Max: Max
//   - otherwise: value + 1
func (c Counter) Next(headers []protocol.HttpHeader, resource string) int {
	value, ok := c.Lookup(headers)
	if !ok {
		return 1
	}
	if resource != c.Tracked {
		return value
	}
	if value >= c.Max {
		return c.Max
	}
	return value + 1
}

// Exceeded reports whether n means the client is out of visits
func (c Counter) Exceeded(n int) bool {
	return n == c.Max
}

// Lookup scans Cookie headers in order and returns the first counter value.
// Values that are not integers in [0, Max] are ignored.
func (c Counter) Lookup(headers []protocol.HttpHeader) (int, bool) {
	for _, h := range headers {
		if !strings.EqualFold(h.Key, cookieHeaderField) {
			continue
		}
		for _, pair := range strings.Split(h.Value, ";") {
			name, value, found := strings.Cut(strings.TrimSpace(pair), "=")
			if !found || name != c.Name {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 || n > c.Max {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}
