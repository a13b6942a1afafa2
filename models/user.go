package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Clan role values stored on users.clan_role.
const (
	RoleLeader  = "leader"
	RoleOfficer = "officer"
	RoleMember  = "member"
)

// User is one row per Telegram identity. The whole clicker economy lives in
// the GameState JSONB document; relational columns carry only what queries
// need (referrals, clan membership, wallet, presence).
type User struct {
	TelegramID    string    `gorm:"primaryKey" json:"telegram_id"`
	Username      string    `json:"username"`
	ReferrerID    *string   `gorm:"index" json:"referrer_id,omitempty"`
	GameState     GameState `gorm:"type:jsonb" json:"game_state"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	LastSeen      time.Time `gorm:"autoCreateTime" json:"last_seen"`
	ClanID        *uint     `gorm:"index" json:"clan_id,omitempty"`
	ClanRole      string    `gorm:"default:'member'" json:"clan_role"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Meme is an upgradable income source. Identity and base numbers come from
// the static catalog; only Level, IsUnlocked and UpgradeCost mutate.
type Meme struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Level        int     `json:"level"`
	IsUnlocked   bool    `json:"isUnlocked"`
	UnlockCost   float64 `json:"unlockCost"`
	BaseViews    float64 `json:"baseViews"`
	PassiveViews float64 `json:"passiveViews"`
	UpgradeCost  float64 `json:"upgradeCost"`
	ImageURL     string  `json:"imageUrl,omitempty"`
}

// RewardBonuses are additive multipliers unlocked by achievements.
// They only ever grow.
type RewardBonuses struct {
	ClickMultiplier   float64 `json:"clickMultiplier"`
	PassiveMultiplier float64 `json:"passiveMultiplier"`
}

// ActiveBoost is a time-boxed multiplier. Expiry is epoch milliseconds.
type ActiveBoost struct {
	IsActive bool  `json:"isActive"`
	Expiry   int64 `json:"expiry"`
}

// ActiveBoosts holds the two boost slots the game knows about.
type ActiveBoosts struct {
	ClickFrenzy      ActiveBoost `json:"clickFrenzy"`
	IncomeMultiplier ActiveBoost `json:"incomeMultiplier"`
}

// NodeState is the mutable per-node progress of the upgrade tree, keyed by
// node id in a flat map. The static catalog owns names, costs and edges.
type NodeState struct {
	Level int `json:"level"`
}

// MetaUpgradeState survives prestige resets.
type MetaUpgradeState struct {
	ID          string `json:"id"`
	IsPurchased bool   `json:"isPurchased"`
}

// DailyQuest is one rolled quest for the current day.
type DailyQuest struct {
	ID          string  `json:"id"`
	Progress    float64 `json:"progress"`
	IsCompleted bool    `json:"isCompleted"`
	IsClaimed   bool    `json:"isClaimed"`
}

// DailyProgress accumulates the per-day metrics quests read from.
type DailyProgress struct {
	DailyClicks  float64 `json:"dailyClicks"`
	DailyViews   float64 `json:"dailyViews"`
	DailyLevels  float64 `json:"dailyLevels"`
	DailyBonuses float64 `json:"dailyBonuses"`
}

// DailyState is the quest set for one calendar day. LastReset is "2006-01-02".
type DailyState struct {
	LastReset string        `json:"lastReset"`
	Progress  DailyProgress `json:"progress"`
	Quests    []DailyQuest  `json:"quests"`
}

// ReferralSystem is server-authoritative: client saves never overwrite it.
type ReferralSystem struct {
	ReferredCount int     `json:"referredCount"`
	Earnings      float64 `json:"earnings"`
}

// OfflineReport is returned once after a load that granted catch-up income.
// Informational only, never persisted.
type OfflineReport struct {
	TimeAway    int64   `json:"timeAway"`
	ViewsEarned float64 `json:"viewsEarned"`
}

// GameState is the per-player clicker document stored in users.game_state.
type GameState struct {
	TotalViews      float64              `json:"totalViews"`
	TotalClicks     int64                `json:"totalClicks"`
	PrestigePoints  int                  `json:"prestigePoints"`
	ActiveMemeIndex int                  `json:"activeMemeIndex"`
	Memes           []Meme               `json:"memes"`
	UpgradeTree     map[string]NodeState `json:"upgradeTree"`
	MetaUpgrades    []MetaUpgradeState   `json:"metaUpgrades"`
	Achievements    map[string]bool      `json:"achievementsProgress"`
	RewardBonuses   RewardBonuses        `json:"rewardBonuses"`
	ActiveBoosts    ActiveBoosts         `json:"activeBoosts"`
	Daily           DailyState           `json:"daily"`
	Referral        ReferralSystem       `json:"referralSystem"`
	LastSaveTime    int64                `json:"lastSaveTime,omitempty"`

	// Transient, stripped before persistence.
	OfflineReport *OfflineReport `json:"offlineReport,omitempty"`

	// Projected from relational columns on read.
	WalletAddress     *string `json:"walletAddress,omitempty"`
	IsWalletConnected bool    `json:"isWalletConnected"`
}

// Value serializes the document for storage.
func (g GameState) Value() (driver.Value, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal game state: %w", err)
	}
	return string(b), nil
}

// Scan deserializes the document from storage.
func (g *GameState) Scan(value interface{}) error {
	if value == nil {
		*g = GameState{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported game_state column type")
	}
	return json.Unmarshal(data, g)
}

// ActiveMeme returns the meme the player currently clicks with. A stale or
// locked index falls back to the first meme.
func (g *GameState) ActiveMeme() *Meme {
	if len(g.Memes) == 0 {
		return nil
	}
	idx := g.ActiveMemeIndex
	if idx < 0 || idx >= len(g.Memes) || !g.Memes[idx].IsUnlocked {
		idx = 0
	}
	return &g.Memes[idx]
}

// MemeByID looks up a meme in the player's list.
func (g *GameState) MemeByID(id string) *Meme {
	for i := range g.Memes {
		if g.Memes[i].ID == id {
			return &g.Memes[i]
		}
	}
	return nil
}

// MetaUpgradePurchased reports whether the player owns a meta upgrade.
func (g *GameState) MetaUpgradePurchased(id string) bool {
	for _, m := range g.MetaUpgrades {
		if m.ID == id {
			return m.IsPurchased
		}
	}
	return false
}
