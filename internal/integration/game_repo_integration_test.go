package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"chess_webapp/internal/chess"
	"chess_webapp/internal/domain"
	"chess_webapp/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

func TestGameRepository_Create_GetByUser(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer db.Close()

	applyMigrations(t, db)

	ur := repository.NewUserRepository(db)
	ctx := context.Background()

	white, err := ur.GetByTgID(ctx, 2001)
	if err != nil {
		white = &domain.User{TgID: 2001, Username: "whitey", FirstName: "W"}
		if err := ur.Create(ctx, white); err != nil {
			t.Fatalf("create white: %v", err)
		}
	}
	black, err := ur.GetByTgID(ctx, 2002)
	if err != nil {
		black = &domain.User{TgID: 2002, Username: "blacky", FirstName: "B"}
		if err := ur.Create(ctx, black); err != nil {
			t.Fatalf("create black: %v", err)
		}
	}

	repo := repository.NewGameRepository(db)

	winner := domain.White
	m := &domain.Match{
		RoomID:    "repo-test",
		WhiteID:   white.ID,
		BlackID:   black.ID,
		Winner:    &winner,
		Reason:    domain.ReasonCheckmate,
		FinalFEN:  chess.StartingFEN,
		MoveCount: 17,
	}
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("create game: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("insert did not return an id")
	}

	games, err := repo.GetByUser(ctx, white.ID, 10)
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	found := false
	for _, g := range games {
		if g.ID == m.ID {
			found = true
			if g.Winner == nil || *g.Winner != domain.White {
				t.Fatalf("winner lost in round trip: %+v", g)
			}
			if g.Reason != domain.ReasonCheckmate {
				t.Fatalf("reason lost: %q", g.Reason)
			}
			if g.MoveCount != 17 {
				t.Fatalf("move count lost: %d", g.MoveCount)
			}
		}
	}
	if !found {
		t.Fatal("created game not returned for white")
	}

	// the loser's history shows the same game
	games, err = repo.GetByUser(ctx, black.ID, 10)
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	found = false
	for _, g := range games {
		if g.ID == m.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("created game not returned for black")
	}
}
