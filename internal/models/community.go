package models

import "time"

// CommunityRole defines a member's role in a community.
type CommunityRole string

const (
	// CommunityRoleAdmin may edit or delete the community.
	CommunityRoleAdmin CommunityRole = "ADMIN"
	// CommunityRoleMember is the default member role.
	CommunityRoleMember CommunityRole = "MEMBER"
)

// Community is a named space users join and post into. Its ID is stable
// across renames and is what realtime rooms are keyed by; the slug is not.
type Community struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:120;not null" json:"name"`
	Slug            string    `gorm:"size:48;not null;uniqueIndex" json:"slug"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedByUserID uint      `gorm:"not null;index" json:"created_by_user_id"`
	CreatedByUser   *User     `gorm:"foreignKey:CreatedByUserID" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Community) TableName() string {
	return "communities"
}

// CommunityMember maps users to communities and tracks role.
type CommunityMember struct {
	CommunityID uint          `gorm:"primaryKey;autoIncrement:false" json:"community_id"`
	Community   *Community    `gorm:"foreignKey:CommunityID;constraint:OnDelete:CASCADE" json:"community,omitempty"`
	UserID      uint          `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	User        *User         `gorm:"foreignKey:UserID" json:"-"`
	Role        CommunityRole `gorm:"type:varchar(20);not null;default:'MEMBER'" json:"role"`
	CreatedAt   time.Time     `json:"created_at"`
}

// CommunityWithRole is a community as seen by one user.
type CommunityWithRole struct {
	Community
	Role CommunityRole `json:"role"`
}
