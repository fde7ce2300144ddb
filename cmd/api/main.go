package main

import (
	"context"
	"log"
	"os"

	"fraudflow/auth"
	"fraudflow/db"
	"fraudflow/escalation"
	"fraudflow/fraudcase"
)

func main() {
	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	userRepo := auth.NewRepository(pool)
	authService := auth.NewService(userRepo, jwtSecret)

	caseService := fraudcase.NewService(
		pool,
		fraudcase.NewRepository(pool),
		userRepo,
		escalation.NewRepository(pool),
	)

	log.Printf("services ready: auth=%v cases=%v", authService != nil, caseService != nil)
}
