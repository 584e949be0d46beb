package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"tracesim/pkg/app"
	"tracesim/pkg/config"
	"tracesim/pkg/lambdatransport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := app.Logger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("build failed", zap.Error(err))
	}
	defer a.Close()

	h := lambdatransport.NewHandler(a.Tracer, a.Issuer, a.Directory, logger.Named("lambda"))
	lambda.Start(h.Handle)
}
