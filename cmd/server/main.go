package main

import (
	"context"
	"log"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/server"
	"github.com/dmitrijs2005/homeserver/internal/server/config"
)

func main() {
	startedAt := time.Now()

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg, startedAt)

	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
