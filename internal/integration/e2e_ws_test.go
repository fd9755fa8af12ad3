package integration

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"

	"chess_webapp/internal/config"
	"chess_webapp/internal/domain"
	httpserver "chess_webapp/internal/http"
	"chess_webapp/internal/repository"
	"chess_webapp/internal/service"
)

func testConfig() *config.Config {
	return &config.Config{
		BotToken:         "dummy-bot-token",
		TurnTime:         30 * time.Second,
		TimeoutPolicy:    config.TimeoutFallback,
		ReconnectGrace:   5 * time.Second,
		AwaitingTimeout:  30 * time.Second,
		SessionEvictsIn:  30 * time.Second,
		FirstPlayerColor: "white",
		APIRateLimit:     1000,
		APIRateWindow:    time.Minute,
	}
}

func TestE2E_WS_Match(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	os.Setenv("JWT_SECRET", "test-secret")

	dbp, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer dbp.Close()

	applyMigrations(t, dbp)

	// create or reuse two users
	ur := repository.NewUserRepository(dbp)
	ctx := context.Background()

	uA, err := ur.GetByTgID(ctx, 1001)
	if err != nil {
		uA = &domain.User{TgID: 1001, Username: "userA", FirstName: "A"}
		if err := ur.Create(ctx, uA); err != nil {
			t.Fatalf("create userA: %v", err)
		}
	}
	uB, err := ur.GetByTgID(ctx, 1002)
	if err != nil {
		uB = &domain.User{TgID: 1002, Username: "userB", FirstName: "B"}
		if err := ur.Create(ctx, uB); err != nil {
			t.Fatalf("create userB: %v", err)
		}
	}

	service.InitJWT()
	tokenA, err := service.GenerateJWT(uA.ID)
	if err != nil {
		t.Fatalf("gen token A: %v", err)
	}
	tokenB, err := service.GenerateJWT(uB.ID)
	if err != nil {
		t.Fatalf("gen token B: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.Default()
	store := httpserver.RegisterRoutes(r, dbp, testConfig(), "test")
	defer store.Shutdown()
	ts := httptest.NewServer(r)
	defer ts.Close()

	room := "e2e-" + time.Now().Format("150405.000")
	base := strings.Replace(ts.URL, "http", "ws", 1) + "/api/v1/play?room_id=" + room

	d := websocket.DefaultDialer
	connA, _, err := d.Dial(base+"&token="+tokenA, nil)
	if err != nil {
		t.Fatalf("dial A: %v", err)
	}
	defer connA.Close()

	connB, _, err := d.Dial(base+"&token="+tokenB, nil)
	if err != nil {
		t.Fatalf("dial B: %v", err)
	}
	defer connB.Close()

	// one reader goroutine per connection
	startReader := func(conn *websocket.Conn) chan []byte {
		out := make(chan []byte, 16)
		go func() {
			defer close(out)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				out <- msg
			}
		}()
		return out
	}

	chA := startReader(connA)
	chB := startReader(connB)

	waitFor := func(ch chan []byte, want string, tmo time.Duration) map[string]any {
		deadline := time.After(tmo)
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					t.Fatalf("connection closed while waiting for %q", want)
				}
				var obj map[string]any
				_ = json.Unmarshal(m, &obj)
				if obj["type"] == want {
					return obj
				}
			case <-deadline:
				t.Fatalf("timeout waiting for %q", want)
			}
		}
	}

	// both sides see the clock start once the room is full
	waitFor(chA, "connect_user", 2*time.Second)
	waitFor(chB, "connect_user", 2*time.Second)

	// first to connect plays white
	_ = connA.WriteMessage(websocket.TextMessage, []byte(`{"v":1,"type":"move","data":{"from":"e2","to":"e4"}}`))
	waitFor(chA, "move", 2*time.Second)
	waitFor(chB, "move", 2*time.Second)

	_ = connB.WriteMessage(websocket.TextMessage, []byte(`{"v":1,"type":"move","data":{"from":"e7","to":"e5"}}`))
	waitFor(chA, "move", 2*time.Second)
	waitFor(chB, "move", 2*time.Second)

	_ = connA.WriteMessage(websocket.TextMessage, []byte(`{"v":1,"type":"resign"}`))
	overA := waitFor(chA, "game_over", 2*time.Second)
	overB := waitFor(chB, "game_over", 2*time.Second)

	for name, obj := range map[string]map[string]any{"A": overA, "B": overB} {
		data, _ := obj["data"].(map[string]any)
		if data["reason"] != "resignation" {
			t.Fatalf("%s: expected resignation, got %v", name, data)
		}
		if data["winner"] != "black" {
			t.Fatalf("%s: expected black winner, got %v", name, data)
		}
	}

	// verify the finished game was stored
	gr := repository.NewGameRepository(dbp)
	deadline := time.Now().Add(5 * time.Second)
	for {
		games, err := gr.GetByUser(context.Background(), uA.ID, 10)
		if err != nil {
			t.Fatalf("get games: %v", err)
		}
		found := false
		for _, g := range games {
			if g.RoomID == room {
				if g.Reason != domain.ReasonResignation {
					t.Fatalf("stored reason %q", g.Reason)
				}
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished game never stored")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
