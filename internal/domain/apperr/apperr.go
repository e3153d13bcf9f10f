// Package apperr defines the closed set of failure kinds surfaced by storefront
// actions and the uniform result returned to callers.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies a failure. The set is closed: every error reaching an
// action boundary maps to exactly one Kind.
type Kind int

const (
	// KindStorage covers storage/transaction failures and anything unclassified.
	KindStorage Kind = iota
	// KindValidation is malformed input; the message is shown verbatim.
	KindValidation
	// KindNotFound is a missing product, order, cart line or user.
	KindNotFound
	// KindBusinessRule is a rule violation such as insufficient stock or an
	// already paid order. It may carry a redirect hint.
	KindBusinessRule
	// KindProvider is a payment provider rejection or mismatch. Never retried.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindProvider:
		return "provider"
	default:
		return "storage"
	}
}

// GenericMessage is shown instead of storage failure details.
const GenericMessage = "Something went wrong, please try again"

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	// RedirectTo names the page that remedies the failure, if any.
	RedirectTo string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a malformed-input failure.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NotFound returns a missing-entity failure.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Rule returns a business-rule violation with an optional redirect hint.
func Rule(msg, redirectTo string) *Error {
	return &Error{Kind: KindBusinessRule, Message: msg, RedirectTo: redirectTo}
}

// Provider returns an external payment provider failure.
func Provider(msg string, err error) *Error {
	return &Error{Kind: KindProvider, Message: msg, Err: err}
}

// Storage wraps a storage or transaction failure.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Message: GenericMessage, Err: err}
}

// Redirect is the navigation signal. It is not a failure and must never be
// folded into a Result.
type Redirect struct {
	URL string
}

func (r *Redirect) Error() string { return "redirect to " + r.URL }

// RedirectTo returns a navigation signal for url.
func RedirectTo(url string) *Redirect { return &Redirect{URL: url} }

// AsRedirect reports whether err carries a navigation signal.
func AsRedirect(err error) (*Redirect, bool) {
	var r *Redirect
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// Classify returns the Kind of err. Errors that are not *Error are storage
// failures.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage(err)
}

// KindOf is a shorthand for Classify(err).Kind.
func KindOf(err error) Kind {
	return Classify(err).Kind
}
