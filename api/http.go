package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/soratv/vod-api/config"
	"github.com/soratv/vod-api/handlers"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/middleware"
	"github.com/soratv/vod-api/service"
)

func ListenAndServe(ctx context.Context, addr string, apiToken string, svc *service.VideoService) error {
	router := NewVodAPIRouter(svc, apiToken)
	server := http.Server{Addr: addr, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID(
		"Starting VOD API!",
		"version", config.Version,
		"host", addr,
	)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil {
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewVodAPIRouter(svc *service.VideoService, apiToken string) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest()
	withAuth := middleware.IsAuthorized

	vodApiHandlers := &handlers.VodAPIHandlersCollection{Service: svc}

	// Simple endpoint for healthchecks
	router.GET("/ok", withLogging(vodApiHandlers.Ok()))

	// Upload and lifecycle
	router.POST("/api/videos/presign", withLogging(withAuth(apiToken, vodApiHandlers.PresignUpload())))
	router.POST("/api/videos", withLogging(withAuth(apiToken, vodApiHandlers.CreateVideo())))
	router.POST("/api/videos/list", withLogging(withAuth(apiToken, vodApiHandlers.ListVideos())))
	router.POST("/api/videos/:id/get", withLogging(withAuth(apiToken, vodApiHandlers.GetVideo())))
	router.POST("/api/videos/:id/delete", withLogging(withAuth(apiToken, vodApiHandlers.DeleteVideo())))
	router.POST("/api/videos/:id/like", withLogging(withAuth(apiToken, vodApiHandlers.ToggleLike())))
	router.POST("/api/videos/:id/transcode", withLogging(withAuth(apiToken, vodApiHandlers.Transcode())))

	// Playback
	router.POST("/api/videos/:id/playHls", withLogging(withAuth(apiToken, vodApiHandlers.PlayHls())))
	router.POST("/api/videos/:id/playUrls", withLogging(withAuth(apiToken, vodApiHandlers.PlayUrls())))

	// Playlist proxy, fetched by players directly. The signed segment URLs it
	// hands out are the actual access gate.
	router.GET("/api/videos/:id/hls/playlist", withLogging(vodApiHandlers.HlsPlaylist()))

	return router
}
