package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/access"
	"github.com/dmitrijs2005/groupledger/internal/server/blob"
	"github.com/dmitrijs2005/groupledger/internal/server/extract"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	// MaxDirectUploadSize bounds receipt uploads sent through the API.
	MaxDirectUploadSize = 5 << 20
	// MaxExtractUploadSize bounds files sent for extraction.
	MaxExtractUploadSize = 10 << 20

	receiptKeyPrefix = "receipts/"
)

var receiptContentTypes = map[string]string{
	"image/jpeg":          "jpg",
	"image/png":           "png",
	"application/pdf":     "pdf",
	"application/x-pdf":   "pdf",
	"application/acrobat": "pdf",
}

var receiptExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "pdf": true}

var newKeyID = func() string { return uuid.NewString()[:8] }

// UploadTicket is a presigned upload target.
type UploadTicket struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// StoredReceipt is a receipt accepted by a direct upload.
type StoredReceipt struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ReceiptService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       *access.Guard
	storage     blob.Storage
	extractor   extract.Extractor
}

// NewReceiptService wires receipt storage. A nil extractor disables extraction.
func NewReceiptService(db *sql.DB, m repomanager.RepositoryManager, st blob.Storage, ex extract.Extractor) *ReceiptService {
	return &ReceiptService{
		db:          db,
		repomanager: m,
		guard:       access.NewGuard(m.Groups(db)),
		storage:     st,
		extractor:   ex,
	}
}

func (s *ReceiptService) UploadMode() string {
	return s.storage.Mode()
}

// receiptKey validates the upload and builds receipts/<user>/<ms>-<id>.<ext>.
func receiptKey(userID int64, filename, contentType string) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	typeExt, ok := receiptContentTypes[contentType]
	if !ok {
		return "", invalid("content type %q is not allowed for receipts", contentType)
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(strings.TrimSpace(filename))), ".")
	if ext == "" {
		ext = typeExt
	}
	if !receiptExtensions[ext] {
		return "", invalid("file extension %q is not allowed", ext)
	}
	return fmt.Sprintf("%s%d/%d-%s.%s", receiptKeyPrefix, userID, timeNow().UnixMilli(), newKeyID(), ext), nil
}

// PresignPut hands out a short-lived upload URL. It needs s3 storage.
func (s *ReceiptService) PresignPut(ctx context.Context, userID int64, filename, contentType string) (*UploadTicket, error) {
	if s.storage.Mode() != "s3" {
		return nil, common.NewError(common.ErrorUnsupported, "presigned uploads require s3 storage")
	}
	key, err := receiptKey(userID, filename, contentType)
	if err != nil {
		return nil, err
	}
	url, err := s.storage.PresignPut(ctx, key, strings.ToLower(strings.TrimSpace(contentType)))
	if err != nil {
		return nil, fmt.Errorf("error presigning upload: %w", err)
	}
	return &UploadTicket{Key: key, URL: url, ExpiresIn: int(blob.PresignExpiry.Seconds())}, nil
}

func (s *ReceiptService) DirectUpload(ctx context.Context, userID int64, filename, contentType string, data []byte) (*StoredReceipt, error) {
	if len(data) == 0 {
		return nil, invalid("file is required")
	}
	if len(data) > MaxDirectUploadSize {
		return nil, common.NewError(common.ErrorTooLarge, "receipt must be at most 5 MiB")
	}
	key, err := receiptKey(userID, filename, contentType)
	if err != nil {
		return nil, err
	}
	key, err = s.storage.Put(ctx, key, data, strings.ToLower(strings.TrimSpace(contentType)))
	if err != nil {
		return nil, fmt.Errorf("error storing receipt: %w", err)
	}
	url, err := s.storage.PresignGet(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("error building receipt url: %w", err)
	}
	return &StoredReceipt{Key: key, URL: url}, nil
}

// keyFromReceiptURL extracts the storage key from a stored receipt reference,
// which may be a bare key or a full URL ending in one.
func keyFromReceiptURL(ref string) string {
	if i := strings.Index(ref, receiptKeyPrefix); i >= 0 {
		return strings.SplitN(ref[i:], "?", 2)[0]
	}
	return ref
}

// uploadedBy reports whether key lives under userID's upload prefix.
func uploadedBy(key string, userID int64) bool {
	return strings.HasPrefix(key, fmt.Sprintf("%s%d/", receiptKeyPrefix, userID))
}

func validReceiptKey(key string) bool {
	return strings.HasPrefix(key, receiptKeyPrefix) && !strings.Contains(key, "..") && !strings.Contains(key, "//")
}

// PresignGet returns a download URL for a receipt. With a transaction id the
// caller must belong to its group. A key not yet attached to any
// transaction is readable only by its uploader. A key always resolves to the
// entry it was first attached to.
func (s *ReceiptService) PresignGet(ctx context.Context, userID int64, transactionID *int64, key string) (string, error) {
	txRepo := s.repomanager.Transactions(s.db)

	var t *models.Transaction
	if transactionID != nil {
		var err error
		t, err = txRepo.GetByID(ctx, *transactionID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return "", errTransactionNotFound
			}
			return "", fmt.Errorf("error loading transaction: %w", err)
		}
		if t.ReceiptURL == nil {
			return "", common.NewError(common.ErrorNotFound, "transaction has no receipt")
		}
		key = keyFromReceiptURL(*t.ReceiptURL)
		if validReceiptKey(key) && !uploadedBy(key, t.CreatedBy) {
			owner, err := txRepo.GetByReceiptKey(ctx, key)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return "", fmt.Errorf("error loading transaction: %w", err)
			}
			if owner == nil || owner.GroupID != t.GroupID {
				return "", common.NewError(common.ErrorForbidden, "you may not access this receipt")
			}
		}
	} else {
		key = strings.TrimSpace(key)
		if key == "" {
			return "", invalid("transactionId or key is required")
		}
		var err error
		t, err = txRepo.GetByReceiptKey(ctx, key)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return "", fmt.Errorf("error loading transaction: %w", err)
		}
	}

	if !validReceiptKey(key) {
		return "", invalid("invalid receipt key")
	}

	if t != nil {
		if _, err := s.guard.Require(ctx, userID, t.GroupID, models.RoleMember); err != nil {
			return "", err
		}
	} else if !uploadedBy(key, userID) {
		return "", common.NewError(common.ErrorForbidden, "you may not access this receipt")
	}

	url, err := s.storage.PresignGet(ctx, key)
	if err != nil {
		return "", fmt.Errorf("error presigning download: %w", err)
	}
	return url, nil
}

func (s *ReceiptService) ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*extract.Result, error) {
	if s.extractor == nil {
		return nil, common.NewError(common.ErrorUnsupported, "receipt extraction is not configured")
	}
	if !extract.IsSupportedMIME(mimeType) {
		return nil, common.NewError(common.ErrorUnsupportedMedia, "only images and pdf files can be parsed")
	}
	if len(data) == 0 {
		return nil, invalid("file is required")
	}
	if len(data) > MaxExtractUploadSize {
		return nil, common.NewError(common.ErrorTooLarge, "file must be at most 10 MiB")
	}
	res, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("error extracting receipt: %w", err)
	}
	return res, nil
}
