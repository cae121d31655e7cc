package handlers

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/soratv/vod-api/config"
	"github.com/soratv/vod-api/log"
)

// PlayHls returns a signed URL for the video's master playlist, the entry
// point for adaptive playback.
func (d *VodAPIHandlersCollection) PlayHls() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		id := videoID(w, ps)
		if id == 0 {
			return
		}
		url, err := d.Service.MasterPlaylistURL(req.Context(), id, expiryParam(req))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// PlayUrls returns signed manifest URLs of every ready rendition, for
// clients that pick a fixed rendition instead of adaptive playback.
func (d *VodAPIHandlersCollection) PlayUrls() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		id := videoID(w, ps)
		if id == 0 {
			return
		}
		urls, err := d.Service.PlayableURLs(req.Context(), id, expiryParam(req))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, urls)
	}
}

// HlsPlaylist is the playlist proxy: it serves the named playlist rewritten
// on the fly. This endpoint is fetched directly by video players following
// the links we put into master playlists, so it carries no auth.
func (d *VodAPIHandlersCollection) HlsPlaylist() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		id := videoID(w, ps)
		if id == 0 {
			return
		}
		name := req.URL.Query().Get("name")

		requestID := config.RandomTrailer(8)
		playlist, err := d.Service.RewrittenPlaylist(req.Context(), requestID, id, name, expiryParam(req))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		// Rewritten playlists embed expiring URLs and must not be cached.
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write([]byte(playlist)); err != nil {
			log.LogError(requestID, "error writing playlist response", err, "video_id", id)
		}
	}
}

func expiryParam(req *http.Request) int {
	raw := req.URL.Query().Get("expiry")
	if raw == "" {
		return 0
	}
	expiry, err := strconv.Atoi(raw)
	if err != nil || expiry < 0 {
		return 0
	}
	return expiry
}
