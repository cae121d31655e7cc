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

var CreateVideoRequestSchemaDefinition string = `{
	"type": "object",
	"properties": {
		"title": {
			"type": "string",
			"minLength": 1,
			"maxLength": 200
		},
		"description": {
			"type": "string",
			"maxLength": 5000
		},
		"sourceAssetId": {
			"type": "integer",
			"minimum": 1
		},
		"coverAssetId": {
			"type": "integer",
			"minimum": 1
		}
	},
	"required": ["title", "sourceAssetId"],
	"additionalProperties": false
}`

type CreateVideoRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	SourceAssetID int64  `json:"sourceAssetId"`
	CoverAssetID  *int64 `json:"coverAssetId"`
}

func (d *VodAPIHandlersCollection) CreateVideo() httprouter.Handle {
	schema := inputSchemasCompiled["CreateVideo"]

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
			errors.WriteHTTPBadBodySchema("CreateVideo", w, result.Errors())
			return
		}
		var createRequest CreateVideoRequest
		if err := json.Unmarshal(payload, &createRequest); err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		requestID := config.RandomTrailer(8)
		vid, err := d.Service.CreateVideo(req.Context(), requestID, service.CreateVideoParams{
			UploaderID:    uid,
			Title:         createRequest.Title,
			Description:   createRequest.Description,
			SourceAssetID: createRequest.SourceAssetID,
			CoverAssetID:  createRequest.CoverAssetID,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, vid)
	}
}

func (d *VodAPIHandlersCollection) ListVideos() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		videos, err := d.Service.ListVideos(req.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, videos)
	}
}

func (d *VodAPIHandlersCollection) GetVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		id := videoID(w, ps)
		if id == 0 {
			return
		}
		details, err := d.Service.GetVideo(req.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

func (d *VodAPIHandlersCollection) DeleteVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		uid := userID(w, req)
		if uid == 0 {
			return
		}
		id := videoID(w, ps)
		if id == 0 {
			return
		}
		requestID := config.RandomTrailer(8)
		if err := d.Service.DeleteVideo(req.Context(), requestID, id, uid); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func (d *VodAPIHandlersCollection) ToggleLike() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		uid := userID(w, req)
		if uid == 0 {
			return
		}
		id := videoID(w, ps)
		if id == 0 {
			return
		}
		liked, count, err := d.Service.ToggleLike(req.Context(), id, uid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"liked":     liked,
			"likeCount": count,
		})
	}
}
