// Package protocols with the shared form resolution algorithm
package protocols

import (
	"github.com/thingzone/wotlib-go/pkg/td"
)

// IsSchemeForm returns true when the form's href, resolved against the base
// URI, uses one of the given schemes.
func IsSchemeForm(form *td.Form, base string, schemes ...string) bool {
	formScheme := form.Scheme(base)
	for _, scheme := range schemes {
		if formScheme == scheme {
			return true
		}
	}
	return false
}

// PickForm selects the form serving the requested operation from the given
// forms, trying each scheme in the given preference order (secured scheme
// first by convention). A form without a declared operation list serves any
// operation. Returns nil when no form matches; the caller must surface
// api.ErrFormNotFound rather than fall back to an unrelated form.
func PickForm(thing *td.Thing, forms []*td.Form, op string, schemes ...string) *td.Form {
	for _, scheme := range schemes {
		for _, form := range forms {
			if form.Scheme(thing.Base) == scheme && form.ServesOp(op) {
				return form
			}
		}
	}
	return nil
}

// PickHref selects a form with PickForm and returns its href resolved against
// the Thing's base URI. Returns an empty string when no form matches.
func PickHref(thing *td.Thing, forms []*td.Form, op string, schemes ...string) string {
	form := PickForm(thing, forms, op, schemes...)
	if form == nil {
		return ""
	}
	return form.ResolveHref(thing.Base)
}

// SupportsInteraction returns true when any form of the named interaction uses
// one of the given schemes, regardless of operation.
func SupportsInteraction(thing *td.Thing, name string, schemes ...string) bool {
	for _, form := range thing.Forms(name) {
		if IsSchemeForm(form, thing.Base, schemes...) {
			return true
		}
	}
	return false
}
