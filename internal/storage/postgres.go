package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/voxlane/symphony/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) AppendTurn(ctx context.Context, turn *models.Turn) error {
	query := `
		INSERT INTO chat_mem (channel_id, thread_ts, user_name, role, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	var id int64
	err := s.db.QueryRowContext(
		ctx,
		query,
		turn.Thread.ChannelID,
		turn.Thread.ThreadTS,
		turn.UserName,
		turn.Role,
		turn.Content,
	).Scan(&id, &turn.CreatedAt)

	if err != nil {
		return fmt.Errorf("error appending turn: %w", err)
	}

	return nil
}

func (s *PostgresStorage) RecentTurns(ctx context.Context, thread models.ThreadID, limit int) ([]models.Turn, error) {
	// Take the tail of the thread, then restore insertion order.
	query := `
		SELECT role, user_name, content, created_at FROM (
			SELECT id, role, user_name, content, created_at
			FROM chat_mem
			WHERE channel_id = $1 AND thread_ts = $2
			ORDER BY id DESC
			LIMIT $3
		) tail
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, thread.ChannelID, thread.ThreadTS, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		turn := models.Turn{Thread: thread}
		var userName sql.NullString
		if err := rows.Scan(&turn.Role, &userName, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning turn: %w", err)
		}
		turn.UserName = userName.String
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading turns: %w", err)
	}

	return turns, nil
}

func (s *PostgresStorage) GetChannelModel(ctx context.Context, channelID string) (string, error) {
	query := `SELECT model FROM channel_settings WHERE channel_id = $1`

	var model string
	err := s.db.QueryRowContext(ctx, query, channelID).Scan(&model)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error querying channel setting: %w", err)
	}

	return model, nil
}

func (s *PostgresStorage) SetChannelModel(ctx context.Context, channelID, model string) error {
	query := `
		INSERT INTO channel_settings (channel_id, model, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (channel_id)
		DO UPDATE SET model = EXCLUDED.model, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, channelID, model); err != nil {
		return fmt.Errorf("error saving channel setting: %w", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
