package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/groupledger/internal/common"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Preferences.GetPreferences(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": p})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiveDuesReminders *bool `json:"receive_dues_reminders"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ReceiveDuesReminders == nil {
		s.writeError(w, r, common.NewError(common.ErrorValidation, "receive_dues_reminders is required"))
		return
	}
	p, err := s.deps.Preferences.UpdatePreferences(r.Context(), caller(r), *req.ReceiveDuesReminders)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": p})
}

func (s *Server) handleNotificationLogs(w http.ResponseWriter, r *http.Request) {
	groupID, err := optionalQueryID(r, "groupId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, err := optionalQueryID(r, "userId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logs, err := s.deps.Reminders.ListNotificationLogs(r.Context(), caller(r), groupID, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleTestDuesReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID int64 `json:"groupId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.GroupID <= 0 {
		s.writeError(w, r, common.NewError(common.ErrorValidation, "groupId is required"))
		return
	}
	report, err := s.deps.Reminders.TestDuesRemindersForGroup(r.Context(), caller(r), req.GroupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type pushRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.deps.Push.Subscribe(r.Context(), caller(r), req.Token, req.Platform)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"subscription": sub})
}

func (s *Server) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	removed, err := s.deps.Push.Unsubscribe(r.Context(), caller(r), req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
