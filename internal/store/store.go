package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/multierr"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Match is the outcome of one finished game.
type Match struct {
	Room    string
	Winner  string
	Draw    bool
	Players []string
	Rounds  int
	EndedAt time.Time
}

// Recorder archives finished matches. Room state never depends on it.
type Recorder interface {
	RecordMatch(ctx context.Context, m Match) error
}

type Nop struct{}

func (Nop) RecordMatch(context.Context, Match) error { return nil }

type MatchResult struct {
	ID      uint   `gorm:"primaryKey"`
	Room    string `gorm:"index;size:128"`
	Winner  string `gorm:"size:128"`
	Draw    bool
	Players string
	Rounds  int
	EndedAt time.Time `gorm:"index"`
}

func (MatchResult) TableName() string { return "match_results" }

func toRecord(m Match) MatchResult {
	return MatchResult{
		Room:    m.Room,
		Winner:  m.Winner,
		Draw:    m.Draw,
		Players: strings.Join(m.Players, ","),
		Rounds:  m.Rounds,
		EndedAt: m.EndedAt.UTC(),
	}
}

func (r MatchResult) toMatch() Match {
	var players []string
	if r.Players != "" {
		players = strings.Split(r.Players, ",")
	}
	return Match{
		Room:    r.Room,
		Winner:  r.Winner,
		Draw:    r.Draw,
		Players: players,
		Rounds:  r.Rounds,
		EndedAt: r.EndedAt,
	}
}

// Postgres stores matches through gorm over a pgx connection pool.
type Postgres struct {
	db  *gorm.DB
	sql *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("ping postgres: %w", err), sqlDB.Close())
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("gorm open: %w", err), sqlDB.Close())
	}
	if err := db.WithContext(ctx).AutoMigrate(&MatchResult{}); err != nil {
		return nil, multierr.Append(fmt.Errorf("migrate: %w", err), sqlDB.Close())
	}
	return &Postgres{db: db, sql: sqlDB}, nil
}

func (p *Postgres) RecordMatch(ctx context.Context, m Match) error {
	rec := toRecord(m)
	if err := p.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record match: %w", err)
	}
	return nil
}

// RecentMatches returns the latest finished matches for a room, newest first.
func (p *Postgres) RecentMatches(ctx context.Context, room string, limit int) ([]Match, error) {
	var rows []MatchResult
	err := p.db.WithContext(ctx).
		Where("room = ?", room).
		Order("ended_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	out := make([]Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMatch())
	}
	return out, nil
}

func (p *Postgres) Close() error {
	return p.sql.Close()
}
