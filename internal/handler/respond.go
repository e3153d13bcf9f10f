package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const maxBody = 1 << 20

var errBadBody = apperr.Validation("Invalid request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, r apperr.Result) {
	r.Success = true
	writeJSON(w, http.StatusOK, r)
}

func failure(w http.ResponseWriter, status int, msg string) {
	httpmiddleware.WriteFailure(w, status, msg)
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBusinessRule:
		return http.StatusConflict
	case apperr.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail answers err. Redirect signals become 303 responses; everything else
// becomes a failed Result. Storage and provider causes are logged, never sent.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if redirect, ok := apperr.AsRedirect(err); ok {
		http.Redirect(w, r, redirect.URL, http.StatusSeeOther)
		return
	}

	e := apperr.Classify(err)
	switch e.Kind {
	case apperr.KindStorage:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	case apperr.KindProvider:
		zctx.From(r.Context()).Warn("Payment provider failure", zap.Error(err))
	}
	writeJSON(w, statusOf(e.Kind), apperr.Fail(err))
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || len(body) == 0 {
		return errBadBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errBadBody
	}
	return nil
}

func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation("Page must be a positive number")
	}
	return n, nil
}
