package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/orientati/user-service/config"
	"github.com/orientati/user-service/pkg/helpers"
)

const upsertUser = `
INSERT INTO users (email, name, surname, hashed_password)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, surname = EXCLUDED.surname, updated_at = now()
RETURNING id`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	const (
		email    = "demo@example.com"
		password = "password123"
		name     = "Demo"
		surname  = "User"
	)
	hash, err := helpers.NewBcryptHasher().Hash(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	var id string
	if err := conn.QueryRow(ctx, upsertUser, email, name, surname, hash).Scan(&id); err != nil {
		log.Fatalf("seed user: %v", err)
	}
	fmt.Printf("seeded %s %s <%s> id=%s (password %q)\n", name, surname, email, id, password)
}
