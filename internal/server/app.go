// Package server wires the groupledger services together and runs the REST
// API, the gRPC health endpoint and the background jobs until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/logging"
	"github.com/dmitrijs2005/groupledger/internal/server/auth"
	"github.com/dmitrijs2005/groupledger/internal/server/blob"
	"github.com/dmitrijs2005/groupledger/internal/server/config"
	"github.com/dmitrijs2005/groupledger/internal/server/delivery"
	"github.com/dmitrijs2005/groupledger/internal/server/extract"
	"github.com/dmitrijs2005/groupledger/internal/server/httpapi"
	"github.com/dmitrijs2005/groupledger/internal/server/metrics"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/groupledger/internal/server/scheduler"
	"github.com/dmitrijs2005/groupledger/internal/server/services"
	"github.com/dmitrijs2005/groupledger/internal/server/shared/db"

	gs "github.com/dmitrijs2005/groupledger/internal/server/grpc"
)

// Job names as they appear in logs and metrics.
const (
	JobInvitationSweep = "invitation-sweep"
	JobDuesReminders   = "dues-reminders"
)

type invitationSweeper interface {
	DeleteExpiredInvitations(ctx context.Context) (int64, error)
}

type refreshTokenPurger interface {
	PurgeExpiredRefreshTokens(ctx context.Context) (int64, error)
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics

	users       refreshTokenPurger
	invitations invitationSweeper
	reminders   *services.ReminderService

	http      *httpapi.Server
	health    *gs.HealthServer
	scheduler *scheduler.Scheduler
}

// NewLogger builds the process logger from the log settings.
func NewLogger(c *config.Config) logging.Logger {
	return logging.NewSlogLogger(logging.New(os.Stdout, logging.Options{Level: c.LogLevel, Format: c.LogFormat}))
}

// Open connects to the database and applies migrations.
func Open(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	conn, err := db.Open(ctx, db.Options{
		DSN:             c.DatabaseDSN,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxIdleTime: c.DBConnMaxIdleTime,
		ConnectTimeout:  c.DBConnectTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return conn, m, nil
}

func newStorage(ctx context.Context, c *config.Config) (blob.Storage, error) {
	if c.ResolvedStorageMode() == config.StorageModeS3 {
		return blob.NewS3Storage(ctx, blob.S3Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	}
	return blob.NewLocalStorage(c.UploadDir, c.PublicBaseURL)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := NewLogger(c)

	conn, m, err := Open(ctx, c)
	if err != nil {
		return nil, err
	}

	storage, err := newStorage(ctx, c)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("receipt storage init error: %w", err)
	}
	filesDir := ""
	if local, ok := storage.(*blob.LocalStorage); ok {
		filesDir = local.Root()
	}

	var extractor extract.Extractor
	if c.ExtractorEndpoint != "" {
		extractor = extract.NewHTTPExtractor(c.ExtractorEndpoint, c.ExtractorAPIKey, 30*time.Second)
	}

	var pusher delivery.Pusher
	if c.FirebaseCredentialsFile != "" {
		p, err := delivery.NewFCMPusher(ctx, c.FirebaseCredentialsFile, m.PushSubscriptions(conn), logger)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("push init error: %w", err)
		}
		pusher = p
	}

	loc := c.Location()
	us := services.NewUserService(conn, m, c)
	gsvc := services.NewGroupService(conn, m)
	is := services.NewInvitationService(conn, m, c.InvitationTTL)
	ts := services.NewTransactionService(conn, m, loc)
	ds := services.NewDuesService(conn, m)
	ps := services.NewPreferenceService(conn, m)
	rs := services.NewReminderService(conn, m, delivery.NewLogChannel(logger), pusher, logger)
	push := services.NewPushService(conn, m)
	receipts := services.NewReceiptService(conn, m, storage, extractor)
	reports := services.NewReportService(conn, m)

	mt := metrics.New()

	app := &App{
		config:      c,
		logger:      logger,
		db:          conn,
		metrics:     mt,
		users:       us,
		invitations: is,
		reminders:   rs,
	}

	app.http = httpapi.NewServer(c.HTTPAddr, httpapi.Deps{
		Identity:       us,
		Groups:         gsvc,
		Invitations:    is,
		Ledger:         ts,
		Dues:           ds,
		Preferences:    ps,
		Reminders:      rs,
		Push:           push,
		Receipts:       receipts,
		Reports:        reports,
		Verifier:       auth.NewJWT(c.SecretKey, c.AccessTokenValidityDuration),
		Logger:         logger,
		Metrics:        mt,
		MetricsHandler: mt.Handler(),
		FilesDir:       filesDir,
		RequestTimeout: c.RequestTimeout,
		Development:    c.IsDevelopment(),
	})
	app.health = gs.NewHealthServer(c.GRPCAddr, logger, conn)

	app.scheduler = scheduler.New(logger, mt)
	app.scheduler.Add(JobInvitationSweep, scheduler.Every(c.InvitationSweepInterval), app.sweepExpired)
	app.scheduler.Add(JobDuesReminders, scheduler.Daily(c.ReminderHour, loc), app.sendDuesReminders)

	return app, nil
}

// sweepExpired drops expired invitations and refresh tokens. Both steps run
// even when one of them fails.
func (app *App) sweepExpired(ctx context.Context) error {
	var errs []error
	n, err := app.invitations.DeleteExpiredInvitations(ctx)
	if err != nil {
		app.logger.Error(ctx, "invitation sweep failed", "error", err)
		errs = append(errs, fmt.Errorf("invitation sweep: %w", err))
	}
	t, err := app.users.PurgeExpiredRefreshTokens(ctx)
	if err != nil {
		app.logger.Error(ctx, "refresh token purge failed", "error", err)
		errs = append(errs, fmt.Errorf("refresh token purge: %w", err))
	}
	app.logger.Info(ctx, "expired rows removed", "invitations", n, "refresh_tokens", t)
	return errors.Join(errs...)
}

func (app *App) sendDuesReminders(ctx context.Context) error {
	sum, err := app.reminders.RunDuesReminderSweep(ctx)
	app.metrics.ObserveReminderSweep(sum)
	if err != nil {
		return err
	}
	app.logger.Info(ctx, "dues reminder sweep finished",
		"groups", sum.Groups, "sent", sum.Sent, "skipped", sum.Skipped, "failed", sum.Failed)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runComponent runs fn and cancels the whole app if it fails.
func (app *App) runComponent(ctx context.Context, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		app.logger.Error(ctx, "component failed", "component", name, "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.runComponent(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.runComponent(ctx, cancelFunc, "grpc", app.health.Run)
	}()
	go func() {
		defer wg.Done()
		app.scheduler.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
