package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"chess_webapp/internal/db"
	"chess_webapp/internal/domain"
	"chess_webapp/internal/repository"
	"chess_webapp/internal/service"
)

// Dials two sockets into one room and plays the first move, against a
// locally running server.
func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	ur := repository.NewUserRepository(pool)
	ctx := context.Background()

	uA, err := ur.GetByTgID(ctx, 3001)
	if err != nil {
		uA = &domain.User{TgID: 3001, Username: "smokeA", FirstName: "A"}
		if err := ur.Create(ctx, uA); err != nil {
			log.Fatalf("create userA: %v", err)
		}
	}

	uB, err := ur.GetByTgID(ctx, 3002)
	if err != nil {
		uB = &domain.User{TgID: 3002, Username: "smokeB", FirstName: "B"}
		if err := ur.Create(ctx, uB); err != nil {
			log.Fatalf("create userB: %v", err)
		}
	}

	service.InitJWT()
	tokenA, err := service.GenerateJWT(uA.ID)
	if err != nil {
		log.Fatalf("gen token A: %v", err)
	}
	tokenB, err := service.GenerateJWT(uB.ID)
	if err != nil {
		log.Fatalf("gen token B: %v", err)
	}

	dialer := websocket.DefaultDialer
	room := fmt.Sprintf("smoke-%d", time.Now().Unix())

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	urlA := fmt.Sprintf("ws://127.0.0.1:%s/api/v1/play?room_id=%s&token=%s", port, room, tokenA)
	urlB := fmt.Sprintf("ws://127.0.0.1:%s/api/v1/play?room_id=%s&token=%s", port, room, tokenB)

	connA, _, err := dialer.Dial(urlA, nil)
	if err != nil {
		log.Fatalf("dial A: %v", err)
	}
	defer connA.Close()

	connB, _, err := dialer.Dial(urlB, nil)
	if err != nil {
		log.Fatalf("dial B: %v", err)
	}
	defer connB.Close()

	// wait until both sides saw the clock start
	waitFor := func(conn *websocket.Conn, want string) {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				continue
			}
			var obj map[string]any
			_ = json.Unmarshal(msg, &obj)
			if t, ok := obj["type"].(string); ok && t == want {
				return
			}
		}
		log.Fatalf("never saw %q", want)
	}

	waitFor(connA, "connect_user")
	waitFor(connB, "connect_user")

	// white is whoever connected first
	move := `{"v":1,"type":"move","data":{"from":"e2","to":"e4"}}`
	if err := connA.WriteMessage(websocket.TextMessage, []byte(move)); err != nil {
		log.Fatalf("write A: %v", err)
	}

	readOne := func(conn *websocket.Conn, name string) {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Printf("%s read error: %v", name, err)
			return
		}
		log.Printf("%s got: %s", name, string(msg))
	}

	readOne(connA, "A")
	readOne(connB, "B")

	log.Println("smoke test finished")
}
