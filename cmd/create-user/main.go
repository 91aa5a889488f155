package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
	"github.com/noah-isme/clinic-agenda-api/internal/repository"
	"github.com/noah-isme/clinic-agenda-api/internal/service"
	"github.com/noah-isme/clinic-agenda-api/pkg/config"
	"github.com/noah-isme/clinic-agenda-api/pkg/database"
	"github.com/noah-isme/clinic-agenda-api/pkg/logger"
)

// create-user provisions a practitioner account, since the API has no
// public sign-up.
func main() {
	var (
		email    string
		password string
		fullName string
		role     string
		timeout  time.Duration
	)
	flag.StringVar(&email, "email", "", "Account email")
	flag.StringVar(&password, "password", "", "Initial password (min 8 characters)")
	flag.StringVar(&fullName, "name", "", "Full name")
	flag.StringVar(&role, "role", string(models.RolePractitioner), "ADMIN or PRACTITIONER")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Database timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	auth := service.NewAuthService(repository.NewUserRepository(db), nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	user, err := auth.CreateUser(ctx, service.CreateUserRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     models.UserRole(strings.ToUpper(role)),
	})
	if err != nil {
		logr.Fatal("failed to create user", zap.Error(err))
	}
	logr.Info("user created", zap.String("id", user.ID), zap.String("email", user.Email), zap.String("role", string(user.Role)))
}
