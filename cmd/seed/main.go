package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"expenses-api/internal/auth"
	"expenses-api/internal/expenses"
	"expenses-api/internal/models"
	"expenses-api/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

var globalCategories = []string{"Transport", "Groceries", "Utilities", "Health"}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type seedOptions struct {
	users    int
	records  int
	password string
	seed     int64
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dbPath := fs.String("db", "expenses.db", "Path to sqlite database file, or postgres URL with -driver postgres")
	driver := fs.String("driver", storage.DriverSQLite, "Database driver (sqlite or postgres)")
	opts := seedOptions{}
	fs.IntVar(&opts.users, "users", 5, "Number of users to create")
	fs.IntVar(&opts.records, "records", 20, "Records per user")
	fs.StringVar(&opts.password, "password", "demo1234", "Password for every generated user")
	fs.Int64Var(&opts.seed, "seed", 0, "Random seed (0 picks a random one)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.users < 1 || opts.records < 0 {
		return fmt.Errorf("users must be positive and records non-negative")
	}

	db, err := storage.NewDB(*driver, *dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	svc := expenses.NewService(db, expenses.GlobalPolicyAny)
	stats, err := seed(context.Background(), svc, gofakeit.New(opts.seed), opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Seeded %d users, %d categories, %d records (password %q)\n",
		stats.users, stats.categories, stats.records, opts.password)
	return nil
}

type seedStats struct {
	users, categories, records int
}

func seed(ctx context.Context, svc *expenses.Service, f *gofakeit.Faker, opts seedOptions) (seedStats, error) {
	var stats seedStats

	hash, err := auth.HashPassword(opts.password)
	if err != nil {
		return stats, fmt.Errorf("failed to hash password: %w", err)
	}

	users := make([]*models.User, 0, opts.users)
	for len(users) < opts.users {
		user, err := svc.RegisterUser(ctx, fmt.Sprintf("%s%d", f.Username(), f.Number(10, 99)), hash)
		if errors.Is(err, expenses.ErrDuplicateName) {
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}
	stats.users = len(users)

	for _, name := range globalCategories {
		if _, err := svc.CreateCategory(ctx, users[0], name, true); err != nil {
			return stats, fmt.Errorf("failed to create category %s: %w", name, err)
		}
		stats.categories++
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -3, 0)
	for _, user := range users {
		for range f.Number(1, 2) {
			noun := f.Noun()
			name := strings.ToUpper(noun[:1]) + noun[1:]
			if _, err := svc.CreateCategory(ctx, user, name, false); err != nil {
				return stats, fmt.Errorf("failed to create category %s: %w", name, err)
			}
			stats.categories++
		}

		visible, err := svc.ListCategoriesVisibleTo(ctx, user)
		if err != nil {
			return stats, err
		}
		for range opts.records {
			category := visible[f.Number(0, len(visible)-1)]
			at := f.DateRange(start, end)
			_, err := svc.CreateRecord(ctx, expenses.NewRecord{
				UserID:     user.ID,
				CategoryID: category.ID,
				Amount:     decimal.NewFromFloat(f.Price(1, 250)).Round(2),
				CreatedAt:  &at,
			})
			if err != nil {
				return stats, fmt.Errorf("failed to create record: %w", err)
			}
			stats.records++
		}
	}
	return stats, nil
}
