package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository stores likes and dislikes on any reactable target.
type ReactionRepository interface {
	// Apply records kind for (user, target) and reports the transition:
	// a new row is added, a different kind is changed, the same kind is removed.
	Apply(ctx context.Context, userID uint, target models.Target, kind models.ReactionKind) (models.ReactionOutcome, error)
	Delete(ctx context.Context, userID uint, target models.Target) (bool, error)
	Get(ctx context.Context, userID uint, target models.Target) (*models.Reaction, error)
	CountLikes(ctx context.Context, target models.Target) (int64, error)
}

type reactionRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewReactionRepository returns a GORM-backed ReactionRepository.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db, logger: observability.NewRepoLogger("reactions")}
}

var reactionKey = []clause.Column{{Name: "user_id"}, {Name: "target_type"}, {Name: "target_id"}}

func (r *reactionRepository) Apply(ctx context.Context, userID uint, target models.Target, kind models.ReactionKind) (models.ReactionOutcome, error) {
	defer observability.TrackQuery("upsert", "reactions")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "apply", "reactions")
	defer span.End()

	var outcome models.ReactionOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lockReaction(tx, userID, target)
		if err != nil {
			return err
		}

		if existing == nil {
			row := models.Reaction{UserID: userID, TargetType: target.Type, TargetID: target.ID, Kind: kind}
			res := tx.Omit("User").Clauses(clause.OnConflict{Columns: reactionKey, DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				outcome = models.ReactionAdded
				return nil
			}
			// A concurrent first reaction won the insert; apply on top of its row
			// as if the two calls had run one after the other.
			if existing, err = lockReaction(tx, userID, target); err != nil {
				return err
			}
			if existing == nil {
				return errReactionVanished
			}
		}

		if existing.Kind == kind {
			if err := tx.Delete(&models.Reaction{}, existing.ID).Error; err != nil {
				return err
			}
			outcome = models.ReactionRemoved
			return nil
		}
		if err := tx.Model(&models.Reaction{}).Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"kind": kind, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		outcome = models.ReactionChanged
		return nil
	})
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		r.logger.LogError(ctx, err, "apply")
		return "", models.NewInternalError(err)
	}
	return outcome, nil
}

var errReactionVanished = errors.New("reaction removed while resolving an insert conflict")

func lockReaction(tx *gorm.DB, userID uint, target models.Target) (*models.Reaction, error) {
	var existing models.Reaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target.Type, target.ID).
		Limit(1).
		Find(&existing).Error
	if err != nil || existing.ID == 0 {
		return nil, err
	}
	return &existing, nil
}

func (r *reactionRepository) Delete(ctx context.Context, userID uint, target models.Target) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target.Type, target.ID).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Get returns (nil, nil) when the user has not reacted to target.
func (r *reactionRepository) Get(ctx context.Context, userID uint, target models.Target) (*models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target.Type, target.ID).
		First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &reaction, nil
}

func (r *reactionRepository) CountLikes(ctx context.Context, target models.Target) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Where("target_type = ? AND target_id = ? AND kind = ?", target.Type, target.ID, models.ReactionLike).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
