package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/peterbourgon/ff/v3"
	"github.com/soratv/vod-api/api"
	"github.com/soratv/vod-api/clients"
	"github.com/soratv/vod-api/config"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/metrics"
	"github.com/soratv/vod-api/pipeline"
	"github.com/soratv/vod-api/pprof"
	"github.com/soratv/vod-api/service"
	"github.com/soratv/vod-api/store"
	"github.com/soratv/vod-api/video"
	"golang.org/x/sync/errgroup"
	"gopkg.in/vansante/go-ffprobe.v2"
)

func main() {
	fs := flag.NewFlagSet("vod-api", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")

	fs.StringVar(&cli.HTTPAddress, "http-addr", "0.0.0.0:8989", "Address to bind the VOD API HTTP server to")
	fs.IntVar(&cli.PromPort, "prom-port", 2112, "Prometheus metrics listen port")
	apiToken := fs.String("api-token", "", "Auth header value for API access; empty disables token auth")

	fs.StringVar(&cli.DatabaseURL, "database-url", "", "Postgres connection string; empty runs with the in-memory store")
	fs.StringVar(&cli.StorageBucket, "storage-bucket", "vod", "Object storage bucket holding sources and HLS artifacts")
	fs.StringVar(&cli.StorageEndpoint, "storage-endpoint", "", "Custom endpoint for S3-compatible stores (MinIO etc); empty for AWS")
	fs.StringVar(&cli.StorageRegion, "storage-region", "us-east-1", "Object storage region")
	storageAccessKey := fs.String("storage-access-key", "", "Object storage access key; empty uses the ambient AWS credential chain")
	storageSecretKey := fs.String("storage-secret-key", "", "Object storage secret key")

	fs.StringVar(&cli.FFmpegPath, "ffmpeg-path", "ffmpeg", "Path to the ffmpeg binary")
	fs.StringVar(&cli.FFprobePath, "ffprobe-path", "ffprobe", "Path to the ffprobe binary")
	fs.StringVar(&cli.WorkDir, "work-dir", "", "Directory for per-job scratch space; empty uses the system temp dir")
	segmentSeconds := fs.Int("hls-segment-seconds", 6, "Target HLS segment duration")
	pprofPort := fs.Int("pprof-port", 6061, "Pprof listen port")
	fs.IntVar(&config.MaxInFlightJobs, "max-inflight-jobs", config.MaxInFlightJobs, "Maximum number of concurrent transcode jobs")

	_ = fs.String("config", "", "config file (optional)")

	err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("VOD_API"),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing cli: %s\n", err)
		os.Exit(1)
	}
	if len(fs.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "unexpected extra arguments on command line: %v\n", fs.Args())
		os.Exit(1)
	}

	if *version {
		fmt.Printf("vod-api version: %s\n", config.Version)
		return
	}

	if cli.FFprobePath != "" {
		ffprobe.SetFFProbeBinPath(cli.FFprobePath)
	}

	var db store.Store
	if cli.DatabaseURL != "" {
		pg, err := store.NewPostgres(cli.DatabaseURL)
		if err != nil {
			log.Fatal("error connecting to postgres", "error", err)
		}
		db = pg
	} else {
		log.LogNoRequestID("database-url not set, running with the in-memory store")
		db = store.NewMemory()
	}

	objects, err := clients.NewS3Store(clients.S3Options{
		Bucket:    cli.StorageBucket,
		Region:    cli.StorageRegion,
		Endpoint:  cli.StorageEndpoint,
		AccessKey: *storageAccessKey,
		SecretKey: *storageSecretKey,
	})
	if err != nil {
		log.Fatal("error creating object storage client", "error", err)
	}

	worker := &pipeline.Worker{
		Store:          db,
		ObjectStore:    objects,
		Prober:         video.Probe{},
		Runner:         video.FFmpegRunner{Path: cli.FFmpegPath},
		WorkDir:        cli.WorkDir,
		SegmentSeconds: *segmentSeconds,
	}
	coordinator := pipeline.NewCoordinator(worker, config.MaxInFlightJobs)

	svc := &service.VideoService{
		Store:      db,
		Objects:    objects,
		Dispatcher: coordinator,
	}

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli.HTTPAddress, *apiToken, svc)
	})

	group.Go(func() error {
		return metrics.ListenAndServe(cli.PromPort)
	})

	group.Go(func() error {
		return pprof.ListenAndServe(*pprofPort)
	})

	err = group.Wait()
	log.LogNoRequestID("Shutting down", "error", err)
}
