package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/config"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/dynamo"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwks"
	jwtinfra "github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwt"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/sns"
	transporthttp "github.com/ElmerIwyze/WyzeSecureApi/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	// SNS SMS sender (optional — delivery failures are never fatal anyway).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
		smsSender = sns.NopSender{}
	}

	deps := &transporthttp.Deps{
		UserRepo:    dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		AttemptRepo: dynamo.NewAttemptRepo(dynamoClient, cfg.DynamoTables.Attempts),
		SMSSender:   smsSender,
		JWTProvider: jwtProvider,
		KeySet:      jwks.NewCache(cfg.JWKSURL, cfg.JWKSCacheTTL, nil, nil),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
