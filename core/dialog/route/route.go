// Package route encodes interactive-button targets into compact callback
// tokens and decodes them back. A token addresses a handler (controller/action
// pair) plus an ordered list of scalar parameters and must fit the 64-byte
// limit Telegram imposes on callback data.
package route

import (
	"errors"
	"strconv"
	"strings"
)

// MaxTokenLen is the transport-imposed ceiling for an encoded token.
const MaxTokenLen = 64

// RootToken is the reserved token for the top-level menu.
const RootToken = "/"

var (
	// ErrTooLarge is returned when an encoded route exceeds MaxTokenLen.
	// Callers should rebuild the route with fewer optional params.
	ErrTooLarge = errors.New("route: encoded token too large")
	// ErrBadParam is returned when a handler id, key, or value contains
	// characters outside the token charset.
	ErrBadParam = errors.New("route: invalid handler or param")
	// ErrMalformed is returned by Decode for any token not produced by Encode.
	ErrMalformed = errors.New("route: malformed token")
)

// Param is a single ordered key/value pair. A Flag param encodes as a bare key.
type Param struct {
	Key   string
	Value string
	Flag  bool
}

// Int builds an integer param.
func Int(key string, v int64) Param {
	return Param{Key: key, Value: strconv.FormatInt(v, 10)}
}

// String builds a short-string param.
func String(key, v string) Param {
	return Param{Key: key, Value: v}
}

// Flag builds a bare valueless param.
func Flag(key string) Param {
	return Param{Key: key, Flag: true}
}

// Route is an immutable handler address: handler id plus ordered params.
type Route struct {
	Handler string
	Params  []Param
}

// Root addresses the top-level menu. It has no handler and no params.
var Root = Route{}

// New builds a route for the given handler id.
func New(handler string, params ...Param) Route {
	return Route{Handler: handler, Params: params}
}

// IsRoot reports whether the route is the reserved top-level menu route.
func (r Route) IsRoot() bool {
	return r.Handler == "" && len(r.Params) == 0
}

// Param returns the value of the first param with the given key.
func (r Route) Param(key string) (string, bool) {
	for _, p := range r.Params {
		if p.Key == key && !p.Flag {
			return p.Value, true
		}
	}
	return "", false
}

// Int returns the value of the given key parsed as int64.
func (r Route) Int(key string) (int64, bool) {
	v, ok := r.Param(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Has reports whether the route carries the given flag.
func (r Route) Has(key string) bool {
	for _, p := range r.Params {
		if p.Key == key && p.Flag {
			return true
		}
	}
	return false
}

// Equal reports deep equality including param order.
func (r Route) Equal(o Route) bool {
	if r.Handler != o.Handler || len(r.Params) != len(o.Params) {
		return false
	}
	for i := range r.Params {
		if r.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

// Encode serializes the route into a token: handler?k=v&k2=v2&flag.
// Encoding is deterministic and preserves param order.
func (r Route) Encode() (string, error) {
	if r.IsRoot() {
		return RootToken, nil
	}
	if !validHandler(r.Handler) {
		return "", ErrBadParam
	}

	var b strings.Builder
	b.WriteString(r.Handler)
	for i, p := range r.Params {
		if !validKey(p.Key) {
			return "", ErrBadParam
		}
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.Key)
		if p.Flag {
			continue
		}
		if !validValue(p.Value) {
			return "", ErrBadParam
		}
		b.WriteByte('=')
		b.WriteString(p.Value)
	}

	token := b.String()
	if len(token) > MaxTokenLen {
		return "", ErrTooLarge
	}
	return token, nil
}

// String returns the encoded token for logging, or a placeholder when the
// route cannot be encoded.
func (r Route) String() string {
	token, err := r.Encode()
	if err != nil {
		return "<invalid:" + r.Handler + ">"
	}
	return token
}

// Decode parses a token back into a route. Any token not produced by Encode
// yields ErrMalformed; Decode never panics on arbitrary input.
func Decode(token string) (Route, error) {
	if token == RootToken {
		return Root, nil
	}
	if token == "" || len(token) > MaxTokenLen {
		return Route{}, ErrMalformed
	}

	handler := token
	query := ""
	if i := strings.IndexByte(token, '?'); i >= 0 {
		handler, query = token[:i], token[i+1:]
		if query == "" {
			return Route{}, ErrMalformed
		}
	}
	if !validHandler(handler) {
		return Route{}, ErrMalformed
	}

	r := Route{Handler: handler}
	if query == "" {
		return r, nil
	}
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			return Route{}, ErrMalformed
		}
		key, value, hasValue := strings.Cut(part, "=")
		if !validKey(key) {
			return Route{}, ErrMalformed
		}
		if !hasValue {
			r.Params = append(r.Params, Param{Key: key, Flag: true})
			continue
		}
		if !validValue(value) {
			return Route{}, ErrMalformed
		}
		r.Params = append(r.Params, Param{Key: key, Value: value})
	}
	return r, nil
}

// validHandler accepts one or two non-empty lowercase segments: "menu" or
// "group-membership/set-tag".
func validHandler(handler string) bool {
	if handler == "" {
		return false
	}
	segments := strings.Split(handler, "/")
	if len(segments) > 2 {
		return false
	}
	for _, seg := range segments {
		if seg == "" || !validKey(seg) {
			return false
		}
	}
	return true
}

func validKey(key string) bool {
	if key == "" || key[0] == '-' || (key[0] >= '0' && key[0] <= '9') {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func validValue(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
