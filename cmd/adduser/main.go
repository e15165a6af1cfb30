package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"expenses-api/internal/auth"
	"expenses-api/internal/expenses"
	"expenses-api/internal/models"
	"expenses-api/internal/storage"

	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "User name")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", "expenses.db", "Path to sqlite database file, or postgres URL with -driver postgres")
	driver := fs.String("driver", storage.DriverSQLite, "Database driver (sqlite or postgres)")
	admin := fs.Bool("admin", false, "Grant admin rights")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <name> [-password <password>] [-db <db_path>] [-driver sqlite|postgres] [-admin]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	// Env vars apply only when the flags were left at their defaults.
	if *dbPath == "expenses.db" {
		if *driver == storage.DriverPostgres {
			if url := os.Getenv("DATABASE_URL"); url != "" {
				*dbPath = url
			}
		} else if path := os.Getenv("DB_PATH"); path != "" {
			*dbPath = path
		}
	}

	db, err := storage.NewDB(*driver, *dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	svc := expenses.NewService(db, expenses.GlobalPolicyAny)
	ctx := context.Background()

	var user *models.User
	if *admin {
		user, err = svc.RegisterAdmin(ctx, *username, hash)
	} else {
		user, err = svc.RegisterUser(ctx, *username, hash)
	}
	if errors.Is(err, expenses.ErrDuplicateName) {
		return fmt.Errorf("user %s already exists", strings.TrimSpace(*username))
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	role := "user"
	if user.IsAdmin {
		role = "admin"
	}
	fmt.Fprintf(stdout, "User %s created successfully with ID %d (%s)\n", user.Name, user.ID, role)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
