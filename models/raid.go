package models

import "time"

// Raid is a time-boxed boss encounter scoped to one clan. At most one active
// raid per clan; it ends when the boss dies or EndDate passes.
type Raid struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ClanID     uint      `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"clan_id"`
	BossHealth float64   `gorm:"not null" json:"boss_health"`
	MaxHealth  float64   `gorm:"not null" json:"max_health"`
	StartDate  time.Time `gorm:"not null" json:"start_date"`
	EndDate    time.Time `gorm:"not null" json:"end_date"`
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
}

// RaidParticipant is the per-player damage ledger row, accumulated via
// upsert-add on the composite key.
type RaidParticipant struct {
	RaidID        uint    `gorm:"primaryKey;autoIncrement:false" json:"raid_id"`
	UserID        string  `gorm:"primaryKey" json:"user_id"`
	DamageDealt   float64 `gorm:"default:0" json:"damage_dealt"`
	RewardClaimed bool    `gorm:"default:false" json:"reward_claimed"`
}

// RaidProjection is a raid with its damage ledger, ordered by damage dealt.
type RaidProjection struct {
	Raid
	Participants []RaidParticipant `json:"participants"`
}
