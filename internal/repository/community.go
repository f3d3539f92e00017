package repository

import (
	"context"
	"errors"

	"huddle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommunityRepository defines persistence operations for communities and memberships.
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	GetBySlug(ctx context.Context, slug string) (*models.Community, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, community *models.Community) error
	Delete(ctx context.Context, id uint) error
	AddMember(ctx context.Context, communityID, userID uint, role models.CommunityRole) error
	Leave(ctx context.Context, communityID, userID uint) error
	GetRole(ctx context.Context, communityID, userID uint) (models.CommunityRole, bool, error)
	ListForUser(ctx context.Context, userID uint) ([]models.CommunityWithRole, error)
	List(ctx context.Context, limit, offset int) ([]models.Community, error)
}

type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository returns a gorm-backed CommunityRepository.
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

// Create inserts the community and makes its creator an admin in the same transaction.
func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(community).Error; err != nil {
			return err
		}
		return tx.Create(&models.CommunityMember{
			CommunityID: community.ID,
			UserID:      community.CreatedByUserID,
			Role:        models.CommunityRoleAdmin,
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("community slug already exists")
		}
		return classify(err)
	}
	return nil
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var c models.Community
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Community", id)
	}
	return &c, nil
}

func (r *communityRepository) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	var c models.Community
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, notFoundOr(err, "Community", slug)
	}
	return &c, nil
}

func (r *communityRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Community{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func (r *communityRepository) Update(ctx context.Context, community *models.Community) error {
	res := r.db.WithContext(ctx).Model(&models.Community{ID: community.ID}).
		Updates(map[string]interface{}{
			"name":        community.Name,
			"slug":        community.Slug,
			"description": community.Description,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return models.NewConflictError("community slug already exists")
		}
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Community", community.ID)
	}
	return nil
}

// Delete removes the community with its likes, posts and memberships.
// Children are deleted explicitly so the cascade holds on drivers without
// enforced foreign keys.
func (r *communityRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		postIDs := tx.Model(&models.Post{}).Select("id").Where("community_id = ?", id)
		if err := tx.Where("post_id IN (?)", postIDs).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", id).Delete(&models.CommunityMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Community{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Community", id)
		}
		return nil
	})
	return classify(err)
}

// AddMember inserts a membership; an existing membership is left untouched.
func (r *communityRepository) AddMember(ctx context.Context, communityID, userID uint, role models.CommunityRole) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CommunityMember{CommunityID: communityID, UserID: userID, Role: role}).Error
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.NewNotFoundError("Community", communityID)
		}
		return classify(err)
	}
	return nil
}

// Leave removes userID's membership unless they are the community's last
// admin. The admin rows are locked for the check so two admins leaving at
// once cannot both pass it.
func (r *communityRepository) Leave(ctx context.Context, communityID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admins []models.CommunityMember
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("community_id = ? AND role = ?", communityID, models.CommunityRoleAdmin).
			Find(&admins).Error; err != nil {
			return err
		}

		var self models.CommunityMember
		err := tx.Where("community_id = ? AND user_id = ?", communityID, userID).First(&self).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Membership", communityID)
		}
		if err != nil {
			return err
		}
		if self.Role == models.CommunityRoleAdmin && len(admins) <= 1 {
			return models.NewConflictError("the last admin cannot leave the community")
		}

		return tx.Where("community_id = ? AND user_id = ?", communityID, userID).
			Delete(&models.CommunityMember{}).Error
	})
	return classify(err)
}

// GetRole returns the user's role and whether they are a member at all.
func (r *communityRepository) GetRole(ctx context.Context, communityID, userID uint) (models.CommunityRole, bool, error) {
	var m models.CommunityMember
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err)
	}
	return m.Role, true, nil
}

// ListForUser returns the user's communities, newest membership first.
func (r *communityRepository) ListForUser(ctx context.Context, userID uint) ([]models.CommunityWithRole, error) {
	var members []models.CommunityMember
	err := r.db.WithContext(ctx).
		Preload("Community").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&members).Error
	if err != nil {
		return nil, classify(err)
	}

	out := make([]models.CommunityWithRole, 0, len(members))
	for _, m := range members {
		if m.Community == nil {
			continue
		}
		out = append(out, models.CommunityWithRole{Community: *m.Community, Role: m.Role})
	}
	return out, nil
}

// List returns communities newest first.
func (r *communityRepository) List(ctx context.Context, limit, offset int) ([]models.Community, error) {
	var out []models.Community
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}
