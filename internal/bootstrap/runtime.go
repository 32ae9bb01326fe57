package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/cache"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/database"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/seed"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedPlan overrides cfg.SeedPlan when set.
	SeedPlan string
}

// InitRuntime connects to DB and Redis, ensures the development root admin
// and applies a seed plan when one is configured.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	// Connect DB
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	planPath := opts.SeedPlan
	if planPath == "" {
		planPath = cfg.SeedPlan
	}
	if err := applySeedPlan(cfg, db, planPath); err != nil {
		return nil, nil, fmt.Errorf("failed to apply seed plan: %w", err)
	}

	return db, r, nil
}

// applySeedPlan seeds from path in development once; a database that
// already has users besides the root admin is left untouched.
func applySeedPlan(cfg *config.Config, db *gorm.DB, path string) error {
	if path == "" {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		log.Printf("seed plan %s ignored outside development (env=%s)", path, cfg.Env)
		return nil
	}

	var existing int64
	if err := db.Model(&models.User{}).Where("id <> ?", 1).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		log.Printf("seed plan %s skipped: database already has %d users", path, existing)
		return nil
	}

	plan, err := seed.LoadPlan(path)
	if err != nil {
		return err
	}
	// Clearing would drop the root admin created above.
	plan.Clean = false

	opts := plan.Options()
	opts.SkipBcrypt = true
	summary, err := seed.NewSeeder(db, opts).ApplyPlan(plan)
	if err != nil {
		return err
	}
	log.Printf("seed plan %s applied: %s", path, summary)
	return nil
}

func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "root"
	}
	email := validation.NormalizeEmail(strings.TrimSpace(cfg.DevRootEmail))
	if email == "" {
		email = "root@espa.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.First(&root, 1).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				ID:       1,
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
				IsActive: true,
				IsAdmin:  true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			updates := map[string]any{"is_admin": true}
			if cfg.DevRootForceCredentials {
				updates["username"] = username
				updates["email"] = email
				updates["password"] = string(hashedPassword)
			}
			if err := tx.Model(&models.User{}).Where("id = ?", 1).Updates(updates).Error; err != nil {
				return err
			}
		}

		// Ensure users ID sequence is not behind explicit ID insertion.
		// This is PostgreSQL-specific.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`
				SELECT setval(
					pg_get_serial_sequence('users', 'id'),
					GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1),
					true
				)
			`).Error; err != nil {
				return fmt.Errorf("failed to reset users sequence: %w", err)
			}
		}

		return nil
	}); err != nil {
		return err
	}

	log.Printf("development root admin bootstrap ensured for user ID 1 (%s)", email)
	return nil
}
