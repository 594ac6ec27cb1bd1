package route

// Builder assembles a route whose optional params may be dropped to satisfy
// the token size limit. Optional params are shed in reverse registration
// order, so call sites register the most expendable param (typically "page")
// last. Required params are never dropped; if they alone overflow, Build
// fails with ErrTooLarge.
type Builder struct {
	handler  string
	required []Param
	optional []Param
}

// NewBuilder starts a builder for the given handler id.
func NewBuilder(handler string) *Builder {
	return &Builder{handler: handler}
}

// Require adds params that must survive encoding.
func (b *Builder) Require(params ...Param) *Builder {
	b.required = append(b.required, params...)
	return b
}

// Optional adds params that may be dropped on overflow, last added first.
func (b *Builder) Optional(params ...Param) *Builder {
	b.optional = append(b.optional, params...)
	return b
}

// Build returns a route that encodes within MaxTokenLen, or ErrTooLarge when
// the required params alone do not fit.
func (b *Builder) Build() (Route, error) {
	for n := len(b.optional); n >= 0; n-- {
		params := make([]Param, 0, len(b.required)+n)
		params = append(params, b.required...)
		params = append(params, b.optional[:n]...)

		r := Route{Handler: b.handler, Params: params}
		_, err := r.Encode()
		if err == nil {
			return r, nil
		}
		if err != ErrTooLarge {
			return Route{}, err
		}
	}
	return Route{}, ErrTooLarge
}

// Token is shorthand for Build followed by Encode.
func (b *Builder) Token() (string, error) {
	r, err := b.Build()
	if err != nil {
		return "", err
	}
	return r.Encode()
}
