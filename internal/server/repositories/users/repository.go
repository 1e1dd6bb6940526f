// Package users declares the Identity Store repository and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	// Create inserts the user and fills ID, Role and CreatedAt. A duplicate
	// email yields a common.ErrorConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
