package hxselect

import (
	"encoding/json"
	"net/http"

	"github.com/a-h/templ"
)

// Render writes a templ component as an HTML response. It is the net/http
// counterpart of the echo adapter's Render.
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX reports whether the request was sent by htmx.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// BuildTriggerHeader formats an HX-Trigger value. Without data it is the
// bare event name; with data it is {"event": data}.
func BuildTriggerHeader(trigger string, triggerData map[string]any) string {
	if trigger == "" {
		return ""
	}
	if triggerData == nil {
		return trigger
	}
	data, err := json.Marshal(map[string]any{trigger: triggerData})
	if err != nil {
		return trigger
	}
	return string(data)
}
