package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/filex"
)

// FilesPathPrefix is where the HTTP server exposes the local upload directory.
const FilesPathPrefix = "/files/"

// LocalStorage keeps blobs under a directory served at PublicBaseURL/files/.
type LocalStorage struct {
	root    string
	baseURL string
}

func NewLocalStorage(dir, publicBaseURL string) (*LocalStorage, error) {
	root, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Root is the absolute upload directory.
func (l *LocalStorage) Root() string { return l.root }

func (l *LocalStorage) Mode() string { return "local" }

func (l *LocalStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	p, err := filex.SafeJoin(l.root, key)
	if err != nil {
		return "", common.NewError(common.ErrorValidation, "invalid storage key")
	}
	if err := filex.WriteFileAtomic(p, data); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return key, nil
}

func (l *LocalStorage) PresignPut(context.Context, string, string) (string, error) {
	return "", common.NewError(common.ErrorUnsupported, "presigned uploads require s3 storage")
}

func (l *LocalStorage) PresignGet(_ context.Context, key string) (string, error) {
	if _, err := filex.SafeJoin(l.root, key); err != nil {
		return "", common.NewError(common.ErrorValidation, "invalid storage key")
	}
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return l.baseURL + FilesPathPrefix + strings.Join(segs, "/"), nil
}
