package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanforge/creator-platform/internal/auth"
	"github.com/fanforge/creator-platform/internal/campaign"
	"github.com/fanforge/creator-platform/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// PostgresStore is the durable persistence layer. It satisfies
// campaign.Repository, auth.UserStore and auth.RefreshTokenStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if the database is
// unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// --- users ---

// CreateUser inserts a new account. Duplicate emails map to ErrEmailTaken.
func (p *PostgresStore) CreateUser(ctx context.Context, u models.User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users(id, email, display_name, password_hash, tier, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Tier, u.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return auth.ErrEmailTaken
	}
	return err
}

// UserByEmail fetches an account by normalized email.
func (p *PostgresStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, tier, created_at
		FROM users WHERE email=$1
	`, email))
}

// UserByID fetches an account by id.
func (p *PostgresStore) UserByID(ctx context.Context, id string) (models.User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, tier, created_at
		FROM users WHERE id=$1
	`, id))
}

func (p *PostgresStore) scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Tier, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, auth.ErrUserNotFound
	}
	return u, err
}

// --- refresh tokens ---

// SaveRefreshToken stores a hashed refresh token.
func (p *PostgresStore) SaveRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO refresh_tokens(token_hash, user_id, expires_at)
		VALUES ($1,$2,$3)
	`, tokenHash, userID, expiresAt)
	return err
}

// LookupRefreshToken resolves a hashed refresh token.
func (p *PostgresStore) LookupRefreshToken(ctx context.Context, tokenHash string) (string, time.Time, error) {
	var userID string
	var expiresAt time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash=$1
	`, tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, auth.ErrTokenNotFound
	}
	return userID, expiresAt, err
}

// DeleteRefreshToken removes a hashed refresh token (rotation or signout).
func (p *PostgresStore) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash=$1`, tokenHash)
	return err
}

// --- campaigns ---

// Create inserts a campaign.
func (p *PostgresStore) Create(ctx context.Context, c models.Campaign) error {
	platforms, err := json.Marshal(c.Platforms)
	if err != nil {
		return err
	}
	goals, err := json.Marshal(c.Goals)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO campaigns(id, creator_id, name, type, platforms, goals,
			budget_total, budget_spent, currency, status, scheduled_at, launched_at,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, c.ID, c.CreatorID, c.Name, string(c.Type), platforms, goals,
		c.Budget.Total, c.Budget.Spent, c.Budget.Currency, string(c.Status),
		c.ScheduledAt, c.LaunchedAt, c.CreatedAt, c.UpdatedAt)
	return err
}

// Get fetches a campaign scoped to its creator.
func (p *PostgresStore) Get(ctx context.Context, creatorID, id string) (models.Campaign, error) {
	return p.scanCampaign(p.pool.QueryRow(ctx, `
		SELECT id, creator_id, name, type, platforms, goals,
			budget_total, budget_spent, currency, status, scheduled_at, launched_at,
			created_at, updated_at
		FROM campaigns WHERE id=$1 AND creator_id=$2
	`, id, creatorID))
}

// Update persists campaign mutations.
func (p *PostgresStore) Update(ctx context.Context, c models.Campaign) error {
	platforms, err := json.Marshal(c.Platforms)
	if err != nil {
		return err
	}
	goals, err := json.Marshal(c.Goals)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE campaigns SET name=$3, type=$4, platforms=$5, goals=$6,
			budget_total=$7, budget_spent=$8, currency=$9, status=$10,
			scheduled_at=$11, launched_at=$12, updated_at=$13
		WHERE id=$1 AND creator_id=$2
	`, c.ID, c.CreatorID, c.Name, string(c.Type), platforms, goals,
		c.Budget.Total, c.Budget.Spent, c.Budget.Currency, string(c.Status),
		c.ScheduledAt, c.LaunchedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// ListByCreator returns a creator's campaigns, newest first.
func (p *PostgresStore) ListByCreator(ctx context.Context, creatorID string) ([]models.Campaign, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, creator_id, name, type, platforms, goals,
			budget_total, budget_spent, currency, status, scheduled_at, launched_at,
			created_at, updated_at
		FROM campaigns WHERE creator_id=$1
		ORDER BY created_at DESC
	`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		c, err := p.scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) scanCampaign(row pgx.Row) (models.Campaign, error) {
	var c models.Campaign
	var typ, status string
	var platforms, goals []byte

	err := row.Scan(&c.ID, &c.CreatorID, &c.Name, &typ, &platforms, &goals,
		&c.Budget.Total, &c.Budget.Spent, &c.Budget.Currency, &status,
		&c.ScheduledAt, &c.LaunchedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Campaign{}, campaign.ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, err
	}

	c.Type = models.CampaignType(typ)
	c.Status = models.CampaignStatus(status)
	if err := json.Unmarshal(platforms, &c.Platforms); err != nil {
		return models.Campaign{}, fmt.Errorf("store: decode platforms: %w", err)
	}
	if err := json.Unmarshal(goals, &c.Goals); err != nil {
		return models.Campaign{}, fmt.Errorf("store: decode goals: %w", err)
	}
	return c, nil
}

// --- webhook events ---

// InsertWebhookEvent persists a webhook delivery and reports inserted=false
// for duplicates. The primary key on the derived event id makes redeliveries
// idempotent at the storage layer as well.
func (p *PostgresStore) InsertWebhookEvent(ctx context.Context, eventID string, ev models.WebhookEvent) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, err
	}

	var one int
	err = p.pool.QueryRow(ctx, `
		INSERT INTO webhook_events(event_id, user_id, event_type, actor_run_id, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING 1
	`, eventID, ev.UserID, string(ev.EventType), ev.EventData.ActorRunID, payload, ev.CreatedAt).Scan(&one)

	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// --- DM log + dashboard ---

// RecordDM logs a delivered DM for dashboard counts.
func (p *PostgresStore) RecordDM(ctx context.Context, msg models.MessagePayload, sentAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO dm_conversations(message_id, user_id, recipient_id, content, sent_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (message_id) DO NOTHING
	`, msg.MessageID, msg.UserID, msg.RecipientID, msg.Content, sentAt)
	return err
}

// DashboardSummary aggregates a creator's campaigns, spend and messaging
// activity. Time-ranged counts use a half-open [from, to) window to avoid
// double counting at boundaries.
func (p *PostgresStore) DashboardSummary(ctx context.Context, creatorID string, from, to time.Time) (models.DashboardSummary, error) {
	summary := models.DashboardSummary{Campaigns: map[string]int64{}}

	rows, err := p.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(budget_total),0), COALESCE(SUM(budget_spent),0)
		FROM campaigns WHERE creator_id=$1
		GROUP BY status
	`, creatorID)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		var total, spent float64
		if err := rows.Scan(&status, &count, &total, &spent); err != nil {
			return summary, err
		}
		summary.Campaigns[status] = count
		summary.TotalBudget += total
		summary.TotalSpent += spent
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM dm_conversations
		WHERE user_id=$1 AND sent_at >= $2 AND sent_at < $3
	`, creatorID, from, to).Scan(&summary.MessagesSent)
	if err != nil {
		return summary, err
	}

	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM generated_content
		WHERE user_id=$1 AND created_at >= $2 AND created_at < $3
	`, creatorID, from, to).Scan(&summary.ContentGenerated)
	if err != nil {
		return summary, err
	}

	return summary, nil
}
