package teams

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

const (
	teamColumns     = `id, exhibit_id, name, short_name, email, created_at, updated_at`
	teamUserColumns = `id, team_id, user_id, is_observer, created_at`
	teamCardColumns = `id, team_id, card_id, move, inject, is_shown_on_wall, can_post_articles, created_at`
)

// Repository handles team, team user and team card persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a teams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Exhibit returns the exhibit a team would belong to.
func (r *Repository) Exhibit(ctx context.Context, id uuid.UUID) (*models.Exhibit, error) {
	var ex models.Exhibit
	err := r.pool.QueryRow(ctx, `SELECT id, collection_id, current_move, current_inject FROM exhibits WHERE id = $1`, id).
		Scan(&ex.ID, &ex.CollectionID, &ex.CurrentMove, &ex.CurrentInject)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("exhibit")
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// GetByID returns a team by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.Team])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("team")
	}
	return t, err
}

// ListByExhibit returns an exhibit's teams by name.
func (r *Repository) ListByExhibit(ctx context.Context, exhibitID uuid.UUID) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+teamColumns+` FROM teams WHERE exhibit_id = $1 ORDER BY name`, exhibitID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Team])
}

// Create inserts a team.
func (r *Repository) Create(ctx context.Context, t *models.Team) error {
	const query = `INSERT INTO teams (exhibit_id, name, short_name, email) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, t.ExhibitID, t.Name, t.ShortName, t.Email).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update saves a team's descriptive fields.
func (r *Repository) Update(ctx context.Context, t *models.Team) error {
	const query = `UPDATE teams SET name = $2, short_name = $3, email = $4, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, t.ID, t.Name, t.ShortName, t.Email).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("team")
	}
	return err
}

// Delete removes a team with its users, cards and team articles.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("team")
	}
	return nil
}

// TeamOfUser returns the team of the exhibit the user is on, or nil.
func (r *Repository) TeamOfUser(ctx context.Context, exhibitID, userID uuid.UUID) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT t.id FROM teams t INNER JOIN team_users tu ON tu.team_id = t.id
		WHERE t.exhibit_id = $1 AND tu.user_id = $2 LIMIT 1`, exhibitID, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Users returns a team's members.
func (r *Repository) Users(ctx context.Context, teamID uuid.UUID) ([]models.TeamUser, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+teamUserColumns+` FROM team_users WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.TeamUser])
}

// AddUser places a user on a team. The exhibit row is locked so two concurrent adds of the
// same user to different teams cannot both pass the one-team-per-exhibit check.
func (r *Repository) AddUser(ctx context.Context, exhibitID uuid.UUID, tu *models.TeamUser) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM exhibits WHERE id = $1 FOR UPDATE`, exhibitID); err != nil {
			return err
		}
		var taken bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM teams t INNER JOIN team_users tu ON tu.team_id = t.id
			WHERE t.exhibit_id = $1 AND tu.user_id = $2)`, exhibitID, tu.UserID).Scan(&taken)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("user is already on a team in this exhibit")
		}
		return tx.QueryRow(ctx, `INSERT INTO team_users (team_id, user_id, is_observer) VALUES ($1, $2, $3)
			RETURNING id, created_at`, tu.TeamID, tu.UserID, tu.IsObserver).Scan(&tu.ID, &tu.CreatedAt)
	})
	switch pgCode(err) {
	case "23505":
		return apperr.Conflict("user is already on this team")
	case "23503":
		return apperr.NotFound("user")
	}
	return err
}

// RemoveUser takes a user off a team and returns the removed row.
func (r *Repository) RemoveUser(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamUser, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM team_users WHERE team_id = $1 AND user_id = $2 RETURNING `+teamUserColumns, teamID, userID)
	if err != nil {
		return nil, err
	}
	tu, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.TeamUser])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("team user")
	}
	return tu, err
}

// CardCollection returns the collection a card belongs to.
func (r *Repository) CardCollection(ctx context.Context, cardID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT collection_id FROM cards WHERE id = $1`, cardID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.NotFound("card")
	}
	return id, err
}

// Cards returns a team's card toggles.
func (r *Repository) Cards(ctx context.Context, teamID uuid.UUID) ([]models.TeamCard, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+teamCardColumns+` FROM team_cards WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.TeamCard])
}

// UpsertCard creates or replaces the toggle row of (team, card) and reports whether it was new.
func (r *Repository) UpsertCard(ctx context.Context, tc *models.TeamCard) (bool, error) {
	const query = `INSERT INTO team_cards (team_id, card_id, move, inject, is_shown_on_wall, can_post_articles)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (team_id, card_id) DO UPDATE SET
			move = EXCLUDED.move, inject = EXCLUDED.inject,
			is_shown_on_wall = EXCLUDED.is_shown_on_wall, can_post_articles = EXCLUDED.can_post_articles
		RETURNING id, created_at, (xmax = 0)`
	var inserted bool
	err := r.pool.QueryRow(ctx, query, tc.TeamID, tc.CardID, tc.Move, tc.Inject, tc.IsShownOnWall, tc.CanPostArticles).
		Scan(&tc.ID, &tc.CreatedAt, &inserted)
	return inserted, err
}

// DeleteCard removes the toggle row of (team, card) and returns it.
func (r *Repository) DeleteCard(ctx context.Context, teamID, cardID uuid.UUID) (*models.TeamCard, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM team_cards WHERE team_id = $1 AND card_id = $2 RETURNING `+teamCardColumns, teamID, cardID)
	if err != nil {
		return nil, err
	}
	tc, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.TeamCard])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("team card")
	}
	return tc, err
}
