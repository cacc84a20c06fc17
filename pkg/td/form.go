// Package td with the Form endpoint binding
package td

import (
	"net/url"

	"github.com/thingzone/wotlib-go/api"
)

// Form binds an interaction to a concrete transport endpoint and operation
type Form struct {
	// Href is the absolute or relative endpoint URI. A relative href resolves
	// against the Thing's base URI.
	Href string
	// MediaType of the payloads, default application/json
	MediaType string
	// Op lists the operations this endpoint serves. An empty list serves any
	// requested operation.
	Op []string
	// Rel is the optional link relation of this form
	Rel string
	// Security is the optional per-form security override, carried opaque
	Security interface{}
}

// NewForm creates a form for the given href with the default media type
func NewForm(href string, ops ...string) *Form {
	return &Form{
		Href:      href,
		MediaType: api.MediaTypeJSON,
		Op:        ops,
	}
}

// ServesOp returns true when this form serves the requested operation.
// A form without declared operations matches any operation.
func (form *Form) ServesOp(op string) bool {
	if len(form.Op) == 0 {
		return true
	}
	for _, formOp := range form.Op {
		if formOp == op {
			return true
		}
	}
	return false
}

// ResolveHref resolves the form href against the given base URI.
// An absolute href is returned as-is. Returns an empty string when neither the
// href nor the base can be parsed.
func (form *Form) ResolveHref(base string) string {
	hrefURL, err := url.Parse(form.Href)
	if err != nil {
		return ""
	}
	if hrefURL.IsAbs() || base == "" {
		return form.Href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(hrefURL).String()
}

// Scheme returns the URI scheme of the resolved href, eg "coap" or "mqtt"
func (form *Form) Scheme(base string) string {
	resolved, err := url.Parse(form.ResolveHref(base))
	if err != nil {
		return ""
	}
	return resolved.Scheme
}
