package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"user-settings-api/cmd/api/app"
	"user-settings-api/cmd/api/server"
)

func main() {
	ctx, stop := server.WithSignal(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("application startup failed: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		a.Logger.Error("application exited with error", zap.Error(err))
		stop()
		log.Fatalf("application exited with error: %v", err)
	}
}
