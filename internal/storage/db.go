package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"expenses-api/internal/expenses"
	"expenses-api/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is a gorm-backed expenses.Repository.
type DB struct {
	conn *gorm.DB
}

// NewDB opens a database connection and runs migrations.
// For sqlite, dsn is a file path or ":memory:"; for postgres it is a connection URL.
func NewDB(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		// modernc.org/sqlite registers itself as "sqlite".
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: sqliteDSN(dsn)})
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if driver != DriverPostgres && isMemoryDSN(dsn) {
		// Every sqlite connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN turns a path into a modernc DSN with foreign keys enabled.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=" + url.QueryEscape("foreign_keys(1)")
}

func (db *DB) migrate() error {
	return db.conn.AutoMigrate(&models.User{}, &models.Category{}, &models.Record{})
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithinTx runs fn inside a database transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(tx expenses.Repository) error) error {
	return db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DB{conn: tx})
	})
}

// translateError maps driver errors onto the expenses error set.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return expenses.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return expenses.ErrDuplicateName
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return expenses.ErrDuplicateName
	}
	var liteErr *moderncsqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")) {
			return expenses.ErrDuplicateName
		}
	}
	return err
}

// CreateUser inserts a new user.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	return translateError(db.conn.WithContext(ctx).Create(u).Error)
}

// GetUser retrieves a user by ID.
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := db.conn.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

// GetUserByName retrieves a user by name.
func (db *DB) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	var u models.User
	if err := db.conn.WithContext(ctx).Where("name = ?", name).First(&u).Error; err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by ID.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	err := db.conn.WithContext(ctx).Order("id").Find(&users).Error
	return users, translateError(err)
}

// DeleteUser removes a user, the user's categories and all affected records.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return translateError(db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.User{}, id).Error; err != nil {
			return err
		}
		owned := tx.Model(&models.Category{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("user_id = ? OR category_id IN (?)", id, owned).Delete(&models.Record{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Category{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	}))
}

// CreateCategory inserts a new category.
func (db *DB) CreateCategory(ctx context.Context, c *models.Category) error {
	return translateError(db.conn.WithContext(ctx).Omit("User").Create(c).Error)
}

// GetCategory retrieves a category by ID.
func (db *DB) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	if err := db.conn.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

// ListCategoriesVisibleTo returns global categories and the ones owned by userID.
func (db *DB) ListCategoriesVisibleTo(ctx context.Context, userID int64) ([]models.Category, error) {
	categories := make([]models.Category, 0)
	err := db.conn.WithContext(ctx).
		Where("is_global = ?", true).
		Or("user_id = ?", userID).
		Order("id").
		Find(&categories).Error
	return categories, translateError(err)
}

// DeleteCategory removes a category and every record referencing it.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	return translateError(db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Category{}, id).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&models.Record{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, id).Error
	}))
}

// CreateRecord inserts a new record.
func (db *DB) CreateRecord(ctx context.Context, r *models.Record) error {
	return translateError(db.conn.WithContext(ctx).Omit("User", "Category").Create(r).Error)
}

// GetRecord retrieves a record by ID.
func (db *DB) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	var r models.Record
	if err := db.conn.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &r, nil
}

// ListRecords returns records matching filter ordered by ID.
func (db *DB) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	query := db.conn.WithContext(ctx).Model(&models.Record{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}

	records := make([]models.Record, 0)
	err := query.Order("id").Find(&records).Error
	return records, translateError(err)
}

// DeleteRecord removes a record by ID.
func (db *DB) DeleteRecord(ctx context.Context, id int64) error {
	result := db.conn.WithContext(ctx).Delete(&models.Record{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return expenses.ErrNotFound
	}
	return nil
}

// Compile-time check: DB implements expenses.Repository.
var _ expenses.Repository = (*DB)(nil)
