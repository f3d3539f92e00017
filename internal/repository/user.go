package repository

import (
	"context"

	"huddle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("username or email already in use")
		}
		return classify(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("username", "avatar", "description").
		Updates(map[string]interface{}{
			"username":    user.Username,
			"avatar":      user.Avatar,
			"description": user.Description,
		}).Error
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("username already taken")
		}
		return classify(err)
	}
	return nil
}

// UsernameTaken reports whether another user than exceptID holds username,
// compared case-insensitively.
func (r *userRepository) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = LOWER(?) AND id <> ?", username, exceptID).
		Count(&n).Error
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// Delete removes the user with their likes, posts and memberships in one
// transaction. Each like the user held is deleted together with a -1 on its
// post's counter; only the like rows locked here are decremented, so a
// toggle committing concurrently is never counted twice. The last admin of a
// community cannot be deleted.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}

		adminOf := tx.Model(&models.CommunityMember{}).Select("community_id").
			Where("user_id = ? AND role = ?", id, models.CommunityRoleAdmin)
		var admins []models.CommunityMember
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("role = ? AND community_id IN (?)", models.CommunityRoleAdmin, adminOf).
			Find(&admins).Error; err != nil {
			return err
		}
		perCommunity := make(map[uint]int, len(admins))
		for _, a := range admins {
			perCommunity[a.CommunityID]++
		}
		for _, n := range perCommunity {
			if n <= 1 {
				return models.NewConflictError("the last admin of a community cannot delete their account; delete the community first")
			}
		}

		var liked []uint
		if err := tx.Model(&models.Like{}).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", id).Pluck("post_id", &liked).Error; err != nil {
			return err
		}
		if len(liked) > 0 {
			if err := tx.Where("user_id = ? AND post_id IN ?", id, liked).
				Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Post{}).Where("id IN ?", liked).
				UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error; err != nil {
				return err
			}
		}

		own := tx.Model(&models.Post{}).Select("id").Where("author_id = ?", id)
		if err := tx.Where("post_id IN (?)", own).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.CommunityMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil && isForeignKeyViolation(err) {
		return models.NewConflictError("user still owns communities")
	}
	return classify(err)
}
