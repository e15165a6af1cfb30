package expenses

import (
	"context"

	"expenses-api/internal/models"
)

// Repository is the persistence port the service runs against.
// Get* methods return ErrNotFound for missing rows.
type Repository interface {
	// WithinTx runs fn against a repository bound to a single transaction.
	// Returning an error from fn rolls the transaction back.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByName(ctx context.Context, name string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// DeleteUser removes the user together with owned categories and all
	// records that reference the user or those categories.
	DeleteUser(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	// ListCategoriesVisibleTo returns global categories plus the ones owned by userID, ordered by id.
	ListCategoriesVisibleTo(ctx context.Context, userID int64) ([]models.Category, error)
	// DeleteCategory removes the category and every record referencing it.
	DeleteCategory(ctx context.Context, id int64) error

	CreateRecord(ctx context.Context, r *models.Record) error
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.Record, error)
	DeleteRecord(ctx context.Context, id int64) error
}
