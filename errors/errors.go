package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/soratv/vod-api/log"
	"github.com/xeipuuv/gojsonschema"
)

// Sentinel errors surfaced by the lifecycle service and playback path. The
// HTTP layer maps them onto response codes.
var (
	VideoNotFoundError    = errors.New("video not found")
	ObjectNotFoundError   = errors.New("object not found")
	NotOwnerError         = errors.New("operator is not the uploader")
	MissingSourceError    = errors.New("sourceAssetId is required")
	InvalidProfilesError  = errors.New("invalid transcode profiles")
	JobAlreadyActiveError = errors.New("transcode job already active for video")
	VideoNotReadyError    = errors.New("video is not ready for playback")
	InvalidPlaylistName   = errors.New("invalid playlist name")
)

type apiError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return apiError{msg, status, err}
}

// HTTP Errors
func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPForbidden(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusForbidden, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnsupportedMediaType, err)
}

func WriteHTTPConflict(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusConflict, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) apiError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return writeHttpError(w, sb.String(), http.StatusBadRequest, nil)
}
