// Package expenses holds the category ownership rules and the operations
// that enforce them on top of a Repository.
package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"expenses-api/internal/models"

	"github.com/shopspring/decimal"
)

// MaxAmount is the exclusive upper bound of a record amount. Amounts are
// stored with two decimal places.
var MaxAmount = decimal.New(1, 12)

// GlobalPolicy decides who may create and delete global categories.
type GlobalPolicy string

const (
	// GlobalPolicyAny lets every authenticated user manage global categories.
	GlobalPolicyAny GlobalPolicy = "any"
	// GlobalPolicyAdmin restricts global category management to admins.
	GlobalPolicyAdmin GlobalPolicy = "admin"
)

// ParseGlobalPolicy converts a config value into a GlobalPolicy.
func ParseGlobalPolicy(s string) (GlobalPolicy, error) {
	switch p := GlobalPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return GlobalPolicyAny, nil
	case GlobalPolicyAny, GlobalPolicyAdmin:
		return p, nil
	default:
		return "", fmt.Errorf("unknown global category policy %q", s)
	}
}

// CanUse reports whether user may see and reference category.
func CanUse(user *models.User, category *models.Category) bool {
	if category.IsGlobal {
		return true
	}
	return category.OwnedBy(user.ID)
}

// Service implements user, category and record operations with ownership checks.
type Service struct {
	repo   Repository
	policy GlobalPolicy
	now    func() time.Time
}

// NewService creates a Service over repo.
func NewService(repo Repository, policy GlobalPolicy) *Service {
	if policy == "" {
		policy = GlobalPolicyAny
	}
	return &Service{repo: repo, policy: policy, now: time.Now}
}

// Ping checks that the repository is reachable. Repositories without a
// Ping method are always reachable.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.repo.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Policy returns the configured global category policy.
func (s *Service) Policy() GlobalPolicy {
	return s.policy
}

func (s *Service) canManageGlobal(user *models.User) bool {
	return s.policy == GlobalPolicyAny || user.IsAdmin
}

// RegisterUser creates a user with an already hashed password.
func (s *Service) RegisterUser(ctx context.Context, name, passwordHash string) (*models.User, error) {
	return s.createUser(ctx, name, passwordHash, false)
}

// RegisterAdmin creates a user with admin rights.
func (s *Service) RegisterAdmin(ctx context.Context, name, passwordHash string) (*models.User, error) {
	return s.createUser(ctx, name, passwordHash, true)
}

func (s *Service) createUser(ctx context.Context, name, passwordHash string, admin bool) (*models.User, error) {
	user := &models.User{Name: strings.TrimSpace(name), PasswordHash: passwordHash, IsAdmin: admin}
	if user.Name == "" {
		return nil, ErrEmptyName
	}
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		if _, err := tx.GetUserByName(ctx, user.Name); err == nil {
			return ErrDuplicateName
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// User returns a user by id.
func (s *Service) User(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

// UserByName returns a user by name.
func (s *Service) UserByName(ctx context.Context, name string) (*models.User, error) {
	return s.repo.GetUserByName(ctx, strings.TrimSpace(name))
}

// Users lists all users.
func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsers(ctx)
}

// DeleteUser removes a user and everything the user owns. Users may delete
// themselves; admins may delete anyone.
func (s *Service) DeleteUser(ctx context.Context, actor *models.User, id int64) error {
	return s.repo.WithinTx(ctx, func(tx Repository) error {
		if _, err := tx.GetUser(ctx, id); err != nil {
			return err
		}
		if actor.ID != id && !actor.IsAdmin {
			return ErrForbidden
		}
		return tx.DeleteUser(ctx, id)
	})
}

// CreateCategory creates a category. Private categories are owned by user.
func (s *Service) CreateCategory(ctx context.Context, user *models.User, name string, isGlobal bool) (*models.Category, error) {
	category := &models.Category{Name: strings.TrimSpace(name), IsGlobal: isGlobal}
	if category.Name == "" {
		return nil, ErrEmptyName
	}
	if isGlobal {
		if !s.canManageGlobal(user) {
			return nil, ErrForbidden
		}
	} else {
		owner := user.ID
		category.UserID = &owner
	}

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		if _, err := tx.GetUser(ctx, user.ID); err != nil {
			return err
		}
		return tx.CreateCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Category returns a category visible to user.
func (s *Service) Category(ctx context.Context, user *models.User, id int64) (*models.Category, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanUse(user, category) {
		return nil, ErrNotFound
	}
	return category, nil
}

// ListCategoriesVisibleTo returns global categories and the ones user owns.
func (s *Service) ListCategoriesVisibleTo(ctx context.Context, user *models.User) ([]models.Category, error) {
	return s.repo.ListCategoriesVisibleTo(ctx, user.ID)
}

// DeleteCategory deletes a category owned by user, or a global one when the
// policy allows it. Records referencing the category are deleted with it.
func (s *Service) DeleteCategory(ctx context.Context, user *models.User, id int64) error {
	return s.repo.WithinTx(ctx, func(tx Repository) error {
		category, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case category.IsGlobal && !s.canManageGlobal(user):
			return ErrForbidden
		case !CanUse(user, category):
			return ErrNotFound
		}
		return tx.DeleteCategory(ctx, id)
	})
}

// NewRecord holds the input of CreateRecord.
type NewRecord struct {
	UserID     int64
	CategoryID int64
	Amount     decimal.Decimal
	CreatedAt  *time.Time
}

// CreateRecord stores an expense after checking that both references exist
// and that the category is usable by the user.
func (s *Service) CreateRecord(ctx context.Context, in NewRecord) (*models.Record, error) {
	amount := in.Amount.Round(2)
	if amount.IsNegative() || amount.GreaterThanOrEqual(MaxAmount) {
		return nil, ErrInvalidAmount
	}
	record := &models.Record{
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Amount:     amount,
	}
	if in.CreatedAt != nil {
		record.CreatedAt = in.CreatedAt.UTC()
	} else {
		record.CreatedAt = s.now().UTC()
	}

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		user, err := tx.GetUser(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("user %d: %w", in.UserID, err)
		}
		category, err := tx.GetCategory(ctx, in.CategoryID)
		if err != nil {
			return fmt.Errorf("category %d: %w", in.CategoryID, err)
		}
		if !CanUse(user, category) {
			return ErrForbiddenCategory
		}
		return tx.CreateRecord(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Record returns a record owned by user.
func (s *Service) Record(ctx context.Context, user *models.User, id int64) (*models.Record, error) {
	record, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.UserID != user.ID {
		return nil, ErrForbidden
	}
	return record, nil
}

// ListRecords returns the user's records. A filter naming another user is rejected.
func (s *Service) ListRecords(ctx context.Context, user *models.User, filter models.RecordFilter) ([]models.Record, error) {
	if filter.UserID != nil && *filter.UserID != user.ID {
		return nil, ErrForbidden
	}
	owner := user.ID
	filter.UserID = &owner
	return s.repo.ListRecords(ctx, filter)
}

// DeleteRecord deletes a record owned by user.
func (s *Service) DeleteRecord(ctx context.Context, user *models.User, id int64) error {
	return s.repo.WithinTx(ctx, func(tx Repository) error {
		record, err := tx.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		if record.UserID != user.ID {
			return ErrForbidden
		}
		return tx.DeleteRecord(ctx, id)
	})
}
