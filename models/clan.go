package models

import "time"

// Clan is a persistent player group. Users back-reference it via clan_id;
// the clan does not own player rows. A clan with zero members is deleted.
type Clan struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	LeaderID    string    `gorm:"not null" json:"leader_id"`
	Description string    `gorm:"type:text;default:''" json:"description"`
	AvatarURL   string    `gorm:"type:text;default:''" json:"avatar_url"`
	TotalViews  float64   `gorm:"default:0" json:"total_views"` // denormalized, refreshed by worker
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Application status values.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// ClanApplication is a join request awaiting leader/officer review.
// At most one pending application per (clan, user).
type ClanApplication struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	ClanID    uint      `gorm:"not null;uniqueIndex:idx_clan_applicant;constraint:OnDelete:CASCADE" json:"clan_id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_clan_applicant" json:"user_id"`
	Status    string    `gorm:"default:'pending'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ClanMember is the roster projection returned by clan reads.
type ClanMember struct {
	TelegramID string  `json:"telegram_id"`
	Username   string  `json:"username"`
	TotalViews float64 `json:"totalViews"`
	RoleID     string  `json:"roleId"`
}

// ClanProjection is a clan with its roster, pending applications and
// aggregate progression total.
type ClanProjection struct {
	Clan
	Members      []ClanMember      `json:"members"`
	Applications []ClanApplication `json:"applications"`
	MemberViews  float64           `json:"totalViews"`
}

// ClanLeaderboardEntry is one row of the clan leaderboard.
type ClanLeaderboardEntry struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	MemberCount int64   `json:"memberCount"`
	TotalViews  float64 `json:"totalViews"`
}
