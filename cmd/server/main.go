package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/groupledger/internal/server"
	"github.com/dmitrijs2005/groupledger/internal/server/config"

	_ "time/tzdata"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
