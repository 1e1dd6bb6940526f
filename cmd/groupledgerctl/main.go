package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/groupledger/internal/ctl"
	"github.com/dmitrijs2005/groupledger/internal/server"
	"github.com/dmitrijs2005/groupledger/internal/server/config"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/groupledger/internal/server/shared/db"

	_ "time/tzdata"
)

func main() {

	if len(os.Args) < 2 {
		log.Fatal(ctl.ErrUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := server.NewLogger(cfg)

	conn, err := db.Open(ctx, db.Options{
		DSN:            cfg.DatabaseDSN,
		MaxOpenConns:   2,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	backend := ctl.NewServiceBackend(conn, repomanager.NewPostgresRepositoryManager(), cfg, logger)
	if err := ctl.NewApp(backend, os.Stdout).Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		conn.Close()
		os.Exit(1)
	}
}
