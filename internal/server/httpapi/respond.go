package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/services"
	"github.com/gorilla/mux"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthenticated),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrorGone):
		return http.StatusGone
	case errors.Is(err, common.ErrorTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrorUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrorUnsupported):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Message: common.Message(err)}

	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = "internal server error"
		if s.deps.Development {
			body.Detail = err.Error()
		}
	} else if body.Message == "" {
		body.Message = strings.ToLower(http.StatusText(status))
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.NewError(common.ErrorTooLarge, "request body is too large")
		}
		return common.NewError(common.ErrorValidation, "invalid JSON body")
	}
	return nil
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewError(common.ErrorValidation, fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	return parseID(name, mux.Vars(r)[name])
}

// requiredQueryID reads a mandatory positive integer query parameter.
func requiredQueryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, common.NewError(common.ErrorValidation, name+" is required")
	}
	return parseID(name, raw)
}

func optionalQueryID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(name, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// queryInt reads an optional non-negative integer; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.NewError(common.ErrorValidation, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}

func queryRange(r *http.Request) (models.DateRange, error) {
	var rng models.DateRange
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := services.ParseDay(v)
		if err != nil {
			return rng, err
		}
		rng.From = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := services.ParseDay(v)
		if err != nil {
			return rng, err
		}
		rng.To = d
	}
	return rng, nil
}
