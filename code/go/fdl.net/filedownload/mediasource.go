package main

import (
	"context"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/mediasource"
)

// setupMediaSource picks the backend: an S3 bucket when configured, the
// local filesystem otherwise.
func setupMediaSource(ctx context.Context) (mediasource.Backend, error) {
	cfg := config.Configuration
	if cfg.S3Bucket != "" {
		return mediasource.NewS3(ctx, cfg)
	}

	forbidden := append([]string{}, cfg.ForbiddenPaths...)
	if cfg.CorePath != "" {
		forbidden = append(forbidden, cfg.CorePath)
	}
	return mediasource.NewDirect(cfg.SiteURL, cfg.ExcludeScan, forbidden), nil
}
