package api

import (
	"net/http"

	"github.com/funnelhq/funnel360/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError renders err. Internal errors are logged with their cause and
// returned without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)

	if appErr.Kind == apperr.KindInternal {
		requestLogger(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		requestLogger(r).Debug().
			Str("kind", appErr.Kind.String()).
			Str("path", r.URL.Path).
			Msg(appErr.Message)
	}

	writeJSON(w, appErr.Kind.HTTPStatus(), errorBody{Error: errorDetail{
		Code:    appErr.Kind.String(),
		Message: appErr.PublicMessage(),
		Fields:  appErr.Fields,
	}})
}
