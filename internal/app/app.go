// Package app wires configuration, storage, the upload service and the
// router into a single http.Handler shared by the server and Lambda entry points.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/stefando/shareDrop/internal/api"
	"github.com/stefando/shareDrop/internal/config"
	"github.com/stefando/shareDrop/internal/metrics"
	"github.com/stefando/shareDrop/internal/storage"
	"github.com/stefando/shareDrop/internal/storage/miniostore"
	"github.com/stefando/shareDrop/internal/storage/s3store"
	"github.com/stefando/shareDrop/internal/upload"
)

// NewBackend builds the storage backend selected by cfg.Driver.
func NewBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case config.DriverMinio:
		store, err := miniostore.New(miniostore.Options{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		}, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverS3, "":
		client, err := s3store.NewClient(ctx, s3store.Options{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			AssumeRoleARN:   cfg.AssumeRoleARN,
		})
		if err != nil {
			return nil, err
		}
		return s3store.NewFromClient(client, cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewHandler builds the broker's HTTP handler on top of backend.
func NewHandler(cfg *config.Config, backend storage.Backend, log *logrus.Logger) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := upload.NewServiceFromConfig(cfg, backend, m, log)

	return api.NewRouter(svc, api.Options{
		Logger:         log,
		Metrics:        m,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
}

// Build loads the backend for cfg and returns the ready handler.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (http.Handler, error) {
	backend, err := NewBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	log.WithFields(logrus.Fields{
		"driver": cfg.Storage.Driver,
		"bucket": cfg.Storage.Bucket,
	}).Info("Storage backend initialized")

	return NewHandler(cfg, backend, log), nil
}
