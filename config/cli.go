package config

type Cli struct {
	HTTPAddress   string
	PromPort      int
	DatabaseURL   string
	StorageBucket string
	// Optional custom endpoint for S3-compatible stores (MinIO etc). Empty
	// means plain AWS.
	StorageEndpoint string
	StorageRegion   string
	FFmpegPath      string
	FFprobePath     string
	WorkDir         string
}
