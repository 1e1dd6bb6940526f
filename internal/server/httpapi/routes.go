package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/groupledger/internal/server/blob"
	"github.com/dmitrijs2005/groupledger/internal/server/reports"
	"github.com/gorilla/mux"
)

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, s.accessLog, s.recoverer, s.timeout)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "method not allowed"})
	})

	if s.deps.MetricsHandler != nil {
		r.Handle("/metrics", s.deps.MetricsHandler).Methods(http.MethodGet)
	}
	if s.deps.FilesDir != "" {
		fs := http.StripPrefix(blob.FilesPathPrefix, http.FileServer(http.Dir(s.deps.FilesDir)))
		r.PathPrefix(blob.FilesPathPrefix).Handler(fs).Methods(http.MethodGet, http.MethodHead)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)

	// Public routes.
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	p := api.NewRoute().Subrouter()
	p.Use(s.requireAuth)

	p.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	p.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	p.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	p.HandleFunc("/groups/{groupId}", s.handleGetGroup).Methods(http.MethodGet)
	p.HandleFunc("/groups/{groupId}", s.handleDeleteGroup).Methods(http.MethodDelete)
	p.HandleFunc("/groups/{groupId}/members", s.handleListMembers).Methods(http.MethodGet)
	p.HandleFunc("/groups/{groupId}/members/{userId}/role", s.handleChangeRole).Methods(http.MethodPut)
	p.HandleFunc("/groups/{groupId}/leave", s.handleLeaveGroup).Methods(http.MethodPost)
	p.HandleFunc("/groups/{groupId}/invitations", s.handleCreateInvitation).Methods(http.MethodPost)
	p.HandleFunc("/invitations/accept", s.handleAcceptInvitation).Methods(http.MethodPost)

	p.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	p.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	p.HandleFunc("/transactions/stats", s.handleStats).Methods(http.MethodGet)
	p.HandleFunc("/transactions/monthly", s.handleMonthlyStats).Methods(http.MethodGet)
	p.HandleFunc("/transactions/by-category", s.handleCategoryStats).Methods(http.MethodGet)
	p.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPut)
	p.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	p.HandleFunc("/dues", s.handleListDues).Methods(http.MethodGet)
	p.HandleFunc("/dues", s.handleSetDues).Methods(http.MethodPut)

	p.HandleFunc("/user/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	p.HandleFunc("/user/preferences", s.handleUpdatePreferences).Methods(http.MethodPut)

	p.HandleFunc("/notifications/logs", s.handleNotificationLogs).Methods(http.MethodGet)
	p.HandleFunc("/notifications/test/dues-reminder", s.handleTestDuesReminder).Methods(http.MethodPost)

	p.HandleFunc("/push/subscribe", s.handlePushSubscribe).Methods(http.MethodPost)
	p.HandleFunc("/push/unsubscribe", s.handlePushUnsubscribe).Methods(http.MethodPost)

	p.HandleFunc("/uploads/mode", s.handleUploadMode).Methods(http.MethodGet)
	p.HandleFunc("/uploads/presign/put", s.handlePresignPut).Methods(http.MethodPost)
	p.HandleFunc("/uploads/direct", s.handleDirectUpload).Methods(http.MethodPost)
	p.HandleFunc("/uploads/presign/get", s.handlePresignGet).Methods(http.MethodGet)
	p.HandleFunc("/ocr/parse", s.handleExtract).Methods(http.MethodPost)

	p.HandleFunc("/reports/summary.xlsx", s.handleReport(reports.FormatXLSX)).Methods(http.MethodGet)
	p.HandleFunc("/reports/summary.csv", s.handleReport(reports.FormatCSV)).Methods(http.MethodGet)

	return r
}
