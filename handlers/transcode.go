package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/soratv/vod-api/config"
	"github.com/soratv/vod-api/errors"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/video"
	"github.com/xeipuuv/gojsonschema"
)

var TranscodeRequestSchemaDefinition string = `{
	"type": "object",
	"properties": {
		"profiles": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"representationId": {
						"type": "string",
						"minLength": 1
					},
					"bitrate": {
						"type": "integer",
						"minimum": 1
					},
					"resolution": {
						"type": "string",
						"pattern": "^[0-9]+x[0-9]+$"
					}
				},
				"required": ["representationId", "bitrate"],
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

type TranscodeRequest struct {
	Profiles []video.EncodedProfile `json:"profiles"`
}

// Transcode kicks off the HLS pipeline for an uploaded video. The request is
// accepted as soon as the job is admitted; progress is observed by polling
// the video and its renditions.
func (d *VodAPIHandlersCollection) Transcode() httprouter.Handle {
	schema := inputSchemasCompiled["Transcode"]

	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		uid := userID(w, req)
		if uid == 0 {
			return
		}
		id := videoID(w, ps)
		if id == 0 {
			return
		}

		var transcodeRequest TranscodeRequest
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read body", err)
			return
		}
		// An empty body means the standard ladder.
		if len(payload) > 0 {
			result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
			if err != nil {
				errors.WriteHTTPBadRequest(w, "Invalid request body", err)
				return
			}
			if !result.Valid() {
				errors.WriteHTTPBadBodySchema("Transcode", w, result.Errors())
				return
			}
			if err := json.Unmarshal(payload, &transcodeRequest); err != nil {
				errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
				return
			}
		}

		requestID := config.RandomTrailer(8)
		log.AddContext(requestID, "video_id", id)
		if err := d.Service.StartTranscode(req.Context(), requestID, id, uid, transcodeRequest.Profiles); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"requestId": requestID})
	}
}
