package main

import (
	"context"
	"os"

	"marketresearch/internal/bootstrap"
	"marketresearch/pkg/logger"
)

func main() {
	ctx := context.Background()

	container := bootstrap.NewContainer()
	container.MustInit(ctx)

	if err := container.Run(ctx); err != nil {
		logger.Get().Errorf("Service exited with error: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}
