package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/services"
)

// multipartOverhead is the slack allowed on top of a file limit for the
// multipart envelope.
const multipartOverhead = 64 << 10

type uploadedFile struct {
	name        string
	contentType string
	data        []byte
}

// readFormFile reads the "file" part of a multipart request, bounded by limit.
func readFormFile(w http.ResponseWriter, r *http.Request, limit int64) (*uploadedFile, error) {
	tooLarge := common.NewError(common.ErrorTooLarge, "file is too large")

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge
		}
		return nil, common.NewError(common.ErrorValidation, "multipart form with a file field is required")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, common.NewError(common.ErrorValidation, "file is required")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, common.NewError(common.ErrorValidation, "error reading file")
	}
	if int64(len(data)) > limit {
		return nil, tooLarge
	}

	ct := hdr.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	ct, _, _ = strings.Cut(ct, ";")
	return &uploadedFile{name: hdr.Filename, contentType: strings.TrimSpace(ct), data: data}, nil
}

func (s *Server) handleUploadMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": s.deps.Receipts.UploadMode()})
}

func (s *Server) handlePresignPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ticket, err := s.deps.Receipts.PresignPut(r.Context(), caller(r), req.Filename, req.ContentType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":         ticket.URL,
		"key":         ticket.Key,
		"contentType": strings.ToLower(strings.TrimSpace(req.ContentType)),
		"expiresIn":   ticket.ExpiresIn,
	})
}

func (s *Server) handleDirectUpload(w http.ResponseWriter, r *http.Request) {
	f, err := readFormFile(w, r, services.MaxDirectUploadSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.deps.Receipts.DirectUpload(r.Context(), caller(r), f.name, f.contentType, f.data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": out.URL, "key": out.Key, "contentType": f.contentType})
}

func (s *Server) handlePresignGet(w http.ResponseWriter, r *http.Request) {
	txID, err := optionalQueryID(r, "transactionId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.deps.Receipts.PresignGet(r.Context(), caller(r), txID, r.URL.Query().Get("key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	f, err := readFormFile(w, r, services.MaxExtractUploadSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Receipts.ExtractReceipt(r.Context(), f.data, f.contentType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}
