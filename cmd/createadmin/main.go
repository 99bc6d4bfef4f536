package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/davemarrero/learnhub-backend/internal/users"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/db"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/security"
)

// createadmin provisions an admin account from the command line. The
// registration endpoint deliberately refuses the admin role, so this
// is the only way to mint one.
func main() {
	logg := logger.New(logger.Options{ServiceName: "createadmin"})

	_ = godotenv.Load()

	email := flag.String("email", "", "admin email address")
	password := flag.String("password", "", "admin password (generated when empty)")
	firstName := flag.String("first-name", "Admin", "first name")
	lastName := flag.String("last-name", "User", "last name")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "missing -email")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	pw := *password
	generated := false
	if pw == "" {
		pw, err = security.GenerateTempPassword(16)
		if err != nil {
			logg.Error(ctx, "failed to generate password", err)
			os.Exit(1)
		}
		generated = true
	}

	hash, err := security.HashPassword(pw, cfg.Password)
	if err != nil {
		logg.Error(ctx, "failed to hash password", err)
		os.Exit(1)
	}

	repo := users.NewRepository(dbClient.DB())
	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		PasswordHash: hash,
		FirstName:    *firstName,
		LastName:     *lastName,
		Role:         enums.UserRoleAdmin,
		IsActive:     true,
	}
	if err := repo.Create(ctx, user); err != nil {
		logg.Error(ctx, "failed to create admin user", err)
		os.Exit(1)
	}

	fmt.Println("created admin:", user.Email, "id:", user.ID)
	if generated {
		fmt.Println("generated password:", pw)
	}
}
