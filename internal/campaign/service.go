package campaign

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/models"
)

var (
	// ErrNotFound is returned when a campaign id does not exist for the
	// requesting creator.
	ErrNotFound = errors.New("campaign not found")
	// ErrValidation marks caller errors that map to HTTP 400.
	ErrValidation = errors.New("invalid campaign request")
	// ErrAlreadyActive preserves the exact message the dashboard matches on.
	ErrAlreadyActive = fmt.Errorf("%w: Campaign is already active", ErrValidation)
)

// Repository is the persistence contract for campaigns.
type Repository interface {
	Create(ctx context.Context, c models.Campaign) error
	Get(ctx context.Context, creatorID, id string) (models.Campaign, error)
	Update(ctx context.Context, c models.Campaign) error
	ListByCreator(ctx context.Context, creatorID string) ([]models.Campaign, error)
}

// CreateParams is the input for Create. Status is always draft on creation.
type CreateParams struct {
	CreatorID string
	Name      string
	Type      models.CampaignType
	Platforms []string
	Goals     []string
	Budget    models.Budget
}

// Service drives campaign lifecycle transitions and budget enforcement.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger zerolog.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("campaign: repository is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "campaign_service").Logger(),
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates the parameters and stores a new draft campaign.
func (s *Service) Create(ctx context.Context, p CreateParams) (models.Campaign, error) {
	if p.CreatorID == "" {
		return models.Campaign{}, fmt.Errorf("%w: creator id is required", ErrValidation)
	}
	if p.Name == "" {
		return models.Campaign{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !models.ValidCampaignType(p.Type) {
		return models.Campaign{}, fmt.Errorf("%w: unknown campaign type %q", ErrValidation, p.Type)
	}
	if len(p.Platforms) == 0 {
		return models.Campaign{}, fmt.Errorf("%w: at least one platform is required", ErrValidation)
	}
	for _, platform := range p.Platforms {
		if !models.ValidPlatform(platform) {
			return models.Campaign{}, fmt.Errorf("%w: unknown platform %q", ErrValidation, platform)
		}
	}
	if p.Budget.Total <= 0 {
		return models.Campaign{}, fmt.Errorf("%w: budget total must be positive", ErrValidation)
	}
	if p.Budget.Spent < 0 {
		return models.Campaign{}, fmt.Errorf("%w: budget spent cannot be negative", ErrValidation)
	}

	now := s.now().UTC()
	c := models.Campaign{
		ID:        uuid.New().String(),
		CreatorID: p.CreatorID,
		Name:      p.Name,
		Type:      p.Type,
		Platforms: p.Platforms,
		Goals:     p.Goals,
		Budget:    p.Budget,
		Status:    models.CampaignDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign: create: %w", err)
	}

	s.logger.Info().
		Str("campaign_id", c.ID).
		Str("creator_id", c.CreatorID).
		Str("type", string(c.Type)).
		Msg("campaign created")
	return c, nil
}

// Get returns a single campaign scoped to its creator.
func (s *Service) Get(ctx context.Context, creatorID, id string) (models.Campaign, error) {
	return s.repo.Get(ctx, creatorID, id)
}

// List returns the creator's campaigns.
func (s *Service) List(ctx context.Context, creatorID string) ([]models.Campaign, error) {
	return s.repo.ListByCreator(ctx, creatorID)
}

// Schedule moves a draft campaign to scheduled for a future launch time.
func (s *Service) Schedule(ctx context.Context, creatorID, id string, at time.Time) (models.Campaign, error) {
	c, err := s.repo.Get(ctx, creatorID, id)
	if err != nil {
		return models.Campaign{}, err
	}

	if c.Status != models.CampaignDraft {
		return models.Campaign{}, fmt.Errorf("%w: only draft campaigns can be scheduled (status %s)", ErrValidation, c.Status)
	}
	if !at.After(s.now()) {
		return models.Campaign{}, fmt.Errorf("%w: scheduled date must be in the future", ErrValidation)
	}

	at = at.UTC()
	c.Status = models.CampaignScheduled
	c.ScheduledAt = &at
	c.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign: schedule: %w", err)
	}
	return c, nil
}

// Launch activates a draft or scheduled campaign. Launching an already active
// campaign is a caller error with a message the dashboard displays verbatim.
func (s *Service) Launch(ctx context.Context, creatorID, id string) (models.Campaign, error) {
	c, err := s.repo.Get(ctx, creatorID, id)
	if err != nil {
		return models.Campaign{}, err
	}

	switch c.Status {
	case models.CampaignActive:
		return models.Campaign{}, ErrAlreadyActive
	case models.CampaignDraft, models.CampaignScheduled:
	default:
		return models.Campaign{}, fmt.Errorf("%w: cannot launch a %s campaign", ErrValidation, c.Status)
	}

	now := s.now().UTC()
	c.Status = models.CampaignActive
	c.LaunchedAt = &now
	c.UpdatedAt = now

	if err := s.repo.Update(ctx, c); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign: launch: %w", err)
	}

	s.logger.Info().Str("campaign_id", c.ID).Msg("campaign launched")
	return c, nil
}

// Pause suspends an active campaign.
func (s *Service) Pause(ctx context.Context, creatorID, id string) (models.Campaign, error) {
	c, err := s.repo.Get(ctx, creatorID, id)
	if err != nil {
		return models.Campaign{}, err
	}

	if c.Status != models.CampaignActive {
		return models.Campaign{}, fmt.Errorf("%w: only active campaigns can be paused (status %s)", ErrValidation, c.Status)
	}

	c.Status = models.CampaignPaused
	c.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign: pause: %w", err)
	}
	return c, nil
}

// Complete finishes an active or paused campaign.
func (s *Service) Complete(ctx context.Context, creatorID, id string) (models.Campaign, error) {
	c, err := s.repo.Get(ctx, creatorID, id)
	if err != nil {
		return models.Campaign{}, err
	}

	if c.Status != models.CampaignActive && c.Status != models.CampaignPaused {
		return models.Campaign{}, fmt.Errorf("%w: cannot complete a %s campaign", ErrValidation, c.Status)
	}

	c.Status = models.CampaignCompleted
	c.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign: complete: %w", err)
	}
	return c, nil
}

// ApplySpend adds spend to the campaign budget. When spend exceeds the total
// budget the campaign is paused automatically and the check reports both.
func (s *Service) ApplySpend(ctx context.Context, creatorID, id string, amount float64) (models.BudgetCheck, error) {
	if amount < 0 {
		return models.BudgetCheck{}, fmt.Errorf("%w: spend amount cannot be negative", ErrValidation)
	}

	c, err := s.repo.Get(ctx, creatorID, id)
	if err != nil {
		return models.BudgetCheck{}, err
	}

	c.Budget.Spent += amount
	c.UpdatedAt = s.now().UTC()

	check := models.BudgetCheck{
		Exceeded:  c.Budget.Spent > c.Budget.Total,
		Remaining: c.Budget.Total - c.Budget.Spent,
	}

	if check.Exceeded && c.Status == models.CampaignActive {
		c.Status = models.CampaignPaused
		check.CampaignPaused = true
		s.logger.Warn().
			Str("campaign_id", c.ID).
			Float64("spent", c.Budget.Spent).
			Float64("total", c.Budget.Total).
			Msg("budget exceeded; campaign paused")
	} else if check.Exceeded {
		// Already paused or never launched: report the pause state as-is.
		check.CampaignPaused = c.Status == models.CampaignPaused
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return models.BudgetCheck{}, fmt.Errorf("campaign: apply spend: %w", err)
	}
	return check, nil
}
