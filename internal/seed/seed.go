// Package seed loads the initial user set from a JSON file, hashing
// passwords at seed time.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/verdello/shop-backend/internal/handlers"
	"github.com/verdello/shop-backend/internal/hash"
	"github.com/verdello/shop-backend/internal/logging"
	"github.com/verdello/shop-backend/internal/models"
)

type seedUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Run is idempotent: users are keyed on email and existing rows are left
// untouched. A missing role falls back to the registration policy.
func Run(ctx context.Context, db *gorm.DB, path string) error {
	l := logging.FromContext(ctx).With("component", "seed")

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", path, err)
	}

	var entries []seedUser
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("seed: parse %s: %w", path, err)
	}

	created := 0
	for _, entry := range entries {
		pwHash, err := hash.HashPassword(entry.Password)
		if err != nil {
			return fmt.Errorf("seed: hash password for %s: %w", entry.Email, err)
		}

		role := entry.Role
		if role == "" {
			role = handlers.RoleForUsername(entry.Username)
		}

		user := models.User{
			Username:     entry.Username,
			Email:        entry.Email,
			PasswordHash: pwHash,
			Role:         role,
		}
		tx := db.WithContext(ctx).Where("email = ?", entry.Email).FirstOrCreate(&user)
		if tx.Error != nil {
			return fmt.Errorf("seed: insert %s: %w", entry.Email, tx.Error)
		}
		if tx.RowsAffected > 0 {
			created++
		}
	}

	l.Info("seed complete", "file", path, "total", len(entries), "created", created)
	return nil
}
