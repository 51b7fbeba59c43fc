package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-core/internal/models"
)

// UserRepo is a sqlx-backed UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, avatar_url FROM users WHERE id=$1`, userID)
	if err != nil {
		return models.User{}, translate(err, "user not found")
	}
	return u, nil
}

func (r *UserRepo) MissingUsers(ctx context.Context, userIDs []int) ([]int, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var missing []int
	err := r.db.SelectContext(ctx, &missing, `SELECT DISTINCT req.id FROM unnest($1::int[]) AS req(id)
        WHERE NOT EXISTS (SELECT 1 FROM users u WHERE u.id = req.id) ORDER BY req.id`, pq.Array(toInt64s(userIDs)))
	return missing, err
}

// UpsertUser refreshes the display fields of a profile, creating it if needed.
// Empty fields never overwrite stored ones.
func (r *UserRepo) UpsertUser(ctx context.Context, user models.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username, avatar_url) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET
            username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
            avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), users.avatar_url),
            updated_at = NOW()
        WHERE (EXCLUDED.username <> '' AND users.username <> EXCLUDED.username)
           OR (EXCLUDED.avatar_url <> '' AND users.avatar_url <> EXCLUDED.avatar_url)`,
		user.ID, user.Username, user.AvatarURL)
	return err
}
