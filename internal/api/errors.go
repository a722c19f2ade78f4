package api

import (
	"errors"
	"net/http"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/panel"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/kb"
)

var (
	// ErrNotFound is returned for an unknown resource.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is returned for a malformed request body.
	ErrBadRequest = errors.New("bad request")
)

// ToHTTPStatus maps domain errors onto HTTP status codes. Unknown errors
// map to 500.
func ToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrNotFound),
		errors.Is(err, kb.ErrBodyNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrBadRequest),
		errors.Is(err, panel.ErrOutOfRange),
		errors.Is(err, panel.ErrUnknownTarget),
		errors.Is(err, panel.ErrInvalidCamera),
		errors.Is(err, scene.ErrInvalidCatalogue),
		errors.Is(err, core.ErrSameBody):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrNotReady),
		errors.Is(err, core.ErrAlreadyTraveling):
		return http.StatusConflict

	case errors.Is(err, core.ErrNoIntercept):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
