// Package httpapi exposes the groupledger services as a JSON REST API over
// gorilla/mux.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/logging"
	"github.com/dmitrijs2005/groupledger/internal/server/auth"
	"github.com/dmitrijs2005/groupledger/internal/server/extract"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/services"
	"github.com/gorilla/mux"
)

type IdentityService interface {
	Register(ctx context.Context, email, password, name string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID int64) (*models.User, error)
}

type GroupService interface {
	CreateGroup(ctx context.Context, ownerID int64, name string) (*models.GroupWithRole, error)
	GetGroup(ctx context.Context, requesterID, groupID int64) (*models.GroupWithRole, error)
	ListGroupsForUser(ctx context.Context, userID int64) ([]models.GroupWithRole, error)
	ListMembers(ctx context.Context, requesterID, groupID int64) ([]models.Member, error)
	ChangeRole(ctx context.Context, requesterID, groupID, targetID int64, role models.Role) (*models.Membership, error)
	LeaveGroup(ctx context.Context, userID, groupID int64) error
	DeleteGroup(ctx context.Context, requesterID, groupID int64) error
}

type InvitationService interface {
	CreateInvitation(ctx context.Context, requesterID, groupID int64, ttlHours int) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, code string, userID int64) (*services.AcceptResult, error)
}

type LedgerService interface {
	CreateTransaction(ctx context.Context, callerID int64, in services.TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, callerID, id int64, in services.TransactionPatchInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, callerID, groupID, id int64) error
	ListTransactions(ctx context.Context, callerID, groupID int64, limit, page int) (*services.TransactionPage, error)
	GetStats(ctx context.Context, callerID, groupID int64) (*models.GroupStats, error)
	GetMonthlyStats(ctx context.Context, callerID, groupID int64, months int) ([]models.MonthlyStat, error)
	GetCategoryStats(ctx context.Context, callerID, groupID int64, rng models.DateRange) ([]models.CategoryStat, error)
}

type DuesService interface {
	SetDuesStatus(ctx context.Context, requesterID, groupID, userID int64, isPaid bool) (*models.Dues, error)
	ListDuesByGroup(ctx context.Context, requesterID, groupID int64) ([]models.MemberDues, error)
}

type PreferenceService interface {
	GetPreferences(ctx context.Context, userID int64) (*models.UserPreference, error)
	UpdatePreferences(ctx context.Context, userID int64, receiveDuesReminders bool) (*models.UserPreference, error)
}

type ReminderService interface {
	TestDuesRemindersForGroup(ctx context.Context, requesterID, groupID int64) (*models.ReminderReport, error)
	ListNotificationLogs(ctx context.Context, requesterID int64, groupID, userID *int64) ([]models.NotificationLog, error)
}

type PushService interface {
	Subscribe(ctx context.Context, userID int64, token, platform string) (*models.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID int64, token string) (bool, error)
}

type ReceiptService interface {
	UploadMode() string
	PresignPut(ctx context.Context, userID int64, filename, contentType string) (*services.UploadTicket, error)
	DirectUpload(ctx context.Context, userID int64, filename, contentType string, data []byte) (*services.StoredReceipt, error)
	PresignGet(ctx context.Context, userID int64, transactionID *int64, key string) (string, error)
	ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*extract.Result, error)
}

type ReportService interface {
	RenderReport(ctx context.Context, requesterID, groupID int64, rng models.DateRange, format string) (*services.RenderedReport, error)
}

// RequestObserver records finished requests. route is the mux path template.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, took time.Duration)
}

// Deps is everything the API needs. Metrics and FilesDir are optional.
type Deps struct {
	Identity       IdentityService
	Groups         GroupService
	Invitations    InvitationService
	Ledger         LedgerService
	Dues           DuesService
	Preferences    PreferenceService
	Reminders      ReminderService
	Push           PushService
	Receipts       ReceiptService
	Reports        ReportService
	Verifier       auth.Verifier
	Logger         logging.Logger
	Metrics        RequestObserver
	MetricsHandler http.Handler
	// FilesDir is served under /files/ when receipts are stored locally.
	FilesDir       string
	RequestTimeout time.Duration
	Development    bool
}

type Server struct {
	deps   Deps
	log    logging.Logger
	router *mux.Router
	srv    *http.Server
}

func NewServer(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	s := &Server{deps: d, log: d.Logger.With("module", "http_server")}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.log.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(shutdownCtx, "http shutdown error", "error", err)
		}
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := s.srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
