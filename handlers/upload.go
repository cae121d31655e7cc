package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/soratv/vod-api/config"
	"github.com/soratv/vod-api/errors"
	"github.com/soratv/vod-api/service"
	"github.com/xeipuuv/gojsonschema"
)

var PresignUploadRequestSchemaDefinition string = `{
	"type": "object",
	"properties": {
		"originalFilename": {
			"type": "string",
			"minLength": 1
		},
		"mimeType": {
			"type": "string",
			"pattern": "^(video|image)/"
		}
	},
	"required": ["originalFilename", "mimeType"],
	"additionalProperties": false
}`

type PresignUploadRequest struct {
	OriginalFilename string `json:"originalFilename"`
	MimeType         string `json:"mimeType"`
}

// PresignUpload issues an upload ticket: an attachment row plus a presigned
// PUT URL the client uploads the file to directly.
func (d *VodAPIHandlersCollection) PresignUpload() httprouter.Handle {
	schema := inputSchemasCompiled["PresignUpload"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		uid := userID(w, req)
		if uid == 0 {
			return
		}
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read body", err)
			return
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request body", err)
			return
		}
		if !result.Valid() {
			errors.WriteHTTPBadBodySchema("PresignUpload", w, result.Errors())
			return
		}
		var presignRequest PresignUploadRequest
		if err := json.Unmarshal(payload, &presignRequest); err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		requestID := config.RandomTrailer(8)
		ticket, err := d.Service.CreateUploadURL(req.Context(), requestID, service.UploadParams{
			UploaderID: uid,
			Filename:   presignRequest.OriginalFilename,
			MimeType:   presignRequest.MimeType,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	}
}
