package search

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pthm/hxselect/widget"
)

// HandlerOption configures Handler.
type HandlerOption func(*handler)

// WithHandlerLogger sets the logger for callback failures.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithForwardHeaders selects which request headers are passed to the
// callback in Query.Header. By default none are.
func WithForwardHeaders(names ...string) HandlerOption {
	return func(h *handler) {
		h.forward = append(h.forward, names...)
	}
}

type handler struct {
	fn      Func
	logger  *zap.Logger
	forward []string
}

// Handler serves fn as a JSON search endpoint.
//
// GET ?query=<term> answers with a JSON array of results. GET ?id=<id>
// answers with the single matching object, or 404. Every other query
// parameter is passed to fn in Query.Vars. Responses allow any origin.
func Handler(fn Func, opts ...HandlerOption) http.Handler {
	h := &handler{fn: fn, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := Query{Vars: map[string]string{}, Header: map[string]string{}}
	for k, v := range r.URL.Query() {
		if len(v) == 0 {
			continue
		}
		switch k {
		case ParamQuery:
			q.Term = strings.TrimSpace(v[0])
		case ParamID:
			q.ID = v[0]
		default:
			q.Vars[k] = v[0]
		}
	}
	for _, name := range h.forward {
		if v := r.Header.Get(name); v != "" {
			q.Header[name] = v
		}
	}

	results, err := h.fn(r.Context(), q)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("search callback failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	if q.IsLookup() {
		item, err := pick(results, q.ID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, item)
		return
	}
	if results == nil {
		results = []widget.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
