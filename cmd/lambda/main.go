package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/stefando/shareDrop/internal/app"
	"github.com/stefando/shareDrop/internal/config"
	"github.com/stefando/shareDrop/internal/lambdaproxy"
	"github.com/stefando/shareDrop/internal/logging"
)

// Global variables to hold initialized services
var (
	log     *logrus.Logger
	handler lambdaproxy.HandlerFunc
)

// init loads configuration and builds the router once per container
func init() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log = logging.New(cfg.Env, cfg.LogLevel)

	router, err := app.Build(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize services")
	}

	handler = lambdaproxy.Handler(router, log)
	log.WithField("bucket", cfg.Storage.Bucket).Info("Services initialized")
}

func main() {
	lambda.Start(handler)
}
