package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/services"
)

type pageMeta struct {
	Limit int `json:"limit"`
	Page  int `json:"page"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	groupID, err := requiredQueryID(r, "groupId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Ledger.ListTransactions(r.Context(), caller(r), groupID, limit, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": res.Items, "meta": pageMeta{Limit: res.Limit, Page: res.Page}})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.deps.Ledger.CreateTransaction(r.Context(), caller(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": t})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in services.TransactionPatchInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.deps.Ledger.UpdateTransaction(r.Context(), caller(r), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": t})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	groupID, err := requiredQueryID(r, "groupId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Ledger.DeleteTransaction(r.Context(), caller(r), groupID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	groupID, err := requiredQueryID(r, "groupId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.deps.Ledger.GetStats(r.Context(), caller(r), groupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": st})
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	groupID, err := requiredQueryID(r, "groupId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	months, err := queryInt(r, "months")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.deps.Ledger.GetMonthlyStats(r.Context(), caller(r), groupID, months)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	groupID, err := requiredQueryID(r, "groupId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rng, err := queryRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.deps.Ledger.GetCategoryStats(r.Context(), caller(r), groupID, rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleListDues(w http.ResponseWriter, r *http.Request) {
	groupID, err := requiredQueryID(r, "groupId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.deps.Dues.ListDuesByGroup(r.Context(), caller(r), groupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleSetDues(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID int64 `json:"groupId"`
		UserID  int64 `json:"userId"`
		IsPaid  *bool `json:"isPaid"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.GroupID <= 0 || req.UserID <= 0 || req.IsPaid == nil {
		s.writeError(w, r, common.NewError(common.ErrorValidation, "groupId, userId and isPaid are required"))
		return
	}
	d, err := s.deps.Dues.SetDuesStatus(r.Context(), caller(r), req.GroupID, req.UserID, *req.IsPaid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": d})
}

func (s *Server) handleReport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := requiredQueryID(r, "groupId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		rng, err := queryRange(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		rep, err := s.deps.Reports.RenderReport(r.Context(), caller(r), groupID, rng, format)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", rep.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rep.Data)
	}
}
