package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"chess_webapp/internal/db"
	"chess_webapp/internal/domain"
	"chess_webapp/internal/repository"
	"chess_webapp/internal/service"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	tgID := int64(9001)
	if len(os.Args) > 1 {
		n, err := strconv.ParseInt(os.Args[1], 10, 64)
		if err != nil {
			log.Fatalf("bad tg id: %v", err)
		}
		tgID = n
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	ur := repository.NewUserRepository(pool)
	ctx := context.Background()

	user, err := ur.GetByTgID(ctx, tgID)
	if err != nil {
		user = &domain.User{TgID: tgID, Username: fmt.Sprintf("testuser%d", tgID), FirstName: "Test", Active: true}
		if err := ur.Create(ctx, user); err != nil {
			log.Fatalf("create user: %v", err)
		}
	}

	service.InitJWT()
	token, err := service.GenerateJWT(user.ID)
	if err != nil {
		log.Fatalf("gen token: %v", err)
	}

	fmt.Printf("user id: %d\ntg id: %d\ntoken: %s\n", user.ID, user.TgID, token)
}
