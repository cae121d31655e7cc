// Package handlers contains the HTTP endpoints of the VOD API. Handlers
// decode and schema-validate requests, resolve the acting user and translate
// service errors onto HTTP statuses; all business rules live in the service
// layer.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	xerrors "github.com/soratv/vod-api/errors"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/service"
)

type VodAPIHandlersCollection struct {
	Service *service.VideoService
}

func (d *VodAPIHandlersCollection) Ok() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		// nolint:errcheck
		w.Write([]byte("OK"))
	}
}

// userID resolves the acting user from the X-User-Id header, set by the auth
// gateway in front of this service. Returns 0 after writing a 401 when the
// header is missing or malformed.
func userID(w http.ResponseWriter, req *http.Request) int64 {
	raw := req.Header.Get("X-User-Id")
	if raw == "" {
		xerrors.WriteHTTPUnauthorized(w, "Missing X-User-Id header", nil)
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		xerrors.WriteHTTPUnauthorized(w, "Invalid X-User-Id header", err)
		return 0
	}
	return id
}

// videoID parses the :id path parameter. Returns 0 after writing a 400 on a
// malformed value.
func videoID(w http.ResponseWriter, ps httprouter.Params) int64 {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		xerrors.WriteHTTPBadRequest(w, "Invalid video id", err)
		return 0
	}
	return id
}

// writeServiceError maps the service layer's sentinel errors onto HTTP
// statuses. Anything unrecognized is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.VideoNotFoundError):
		xerrors.WriteHTTPNotFound(w, "Video not found", err)
	case errors.Is(err, xerrors.ObjectNotFoundError):
		xerrors.WriteHTTPNotFound(w, "Object not found", err)
	case errors.Is(err, xerrors.NotOwnerError):
		xerrors.WriteHTTPForbidden(w, "Not the owner of this video", err)
	case errors.Is(err, xerrors.MissingSourceError),
		errors.Is(err, xerrors.InvalidProfilesError),
		errors.Is(err, xerrors.InvalidPlaylistName):
		xerrors.WriteHTTPBadRequest(w, "Invalid request", err)
	case errors.Is(err, xerrors.JobAlreadyActiveError),
		errors.Is(err, xerrors.VideoNotReadyError):
		xerrors.WriteHTTPConflict(w, "Conflicting video state", err)
	default:
		xerrors.WriteHTTPInternalServerError(w, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogNoRequestID("error writing json response", "error", err)
	}
}
