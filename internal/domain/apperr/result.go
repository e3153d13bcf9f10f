package apperr

// Result is the uniform outcome of a storefront action.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RedirectTo string `json:"redirectTo,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// OK returns a successful Result.
func OK(msg string) Result {
	return Result{Success: true, Message: msg}
}

// Fail converts err into a failed Result. Storage failures expose only the
// generic message. Callers must check AsRedirect before calling Fail.
func Fail(err error) Result {
	e := Classify(err)
	msg := e.Message
	if e.Kind == KindStorage {
		msg = GenericMessage
	}
	return Result{Message: msg, RedirectTo: e.RedirectTo}
}
