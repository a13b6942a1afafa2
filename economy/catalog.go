package economy

import "meme-clicker-backend/models"

// Tuning constants shared by client and server.
const (
	UpgradeCostRatio       = 1.12
	ClickFrenzyMultiplier  = 500
	IncomeBoostMultiplier  = 7
	PrestigeThreshold      = 1e12
	PrestigePointBonus     = 0.02
	MaxOfflineSeconds      = 7 * 24 * 60 * 60
	OfflineDeadZoneSeconds = 10

	// Raid sizing: boss health covers 3 days of the clan's hourly income,
	// raids run for 7 days.
	RaidHealthHours    = 3 * 24
	RaidDurationHours  = 7 * 24
	RaidMinBossHealth  = 50000
	StartBonusViews    = 10000
	ReferralRewardSecs = 3600
)

// EffectType classifies what an upgrade-tree node improves.
type EffectType string

const (
	EffectPassiveMultiplier    EffectType = "PASSIVE_MULTIPLIER"
	EffectClickMultiplier      EffectType = "CLICK_MULTIPLIER"
	EffectUpgradeCostReduction EffectType = "UPGRADE_COST_REDUCTION"
)

// TreeNode is one node of the static upgrade-tree catalog. Per-player
// progress lives in a flat map keyed by ID; prerequisite edges are resolved
// by id lookup rather than nested ownership.
type TreeNode struct {
	ID            string
	Name          string
	MaxLevel      int
	Cost          float64
	Prerequisites []string
	Effect        EffectType
	Value         float64
}

// UpgradeTreeNodes is the full catalog, both trees flattened.
var UpgradeTreeNodes = []TreeNode{
	{ID: "passive_root", Name: "Passive income basics", MaxLevel: 3, Cost: 10000, Effect: EffectPassiveMultiplier, Value: 0.10},
	{ID: "passive_boost_1", Name: "Perpetual meme engine", MaxLevel: 3, Cost: 25000, Prerequisites: []string{"passive_root"}, Effect: EffectPassiveMultiplier, Value: 0.15},
	{ID: "cost_reduction_1", Name: "Bulk purchasing", MaxLevel: 3, Cost: 50000, Prerequisites: []string{"passive_root"}, Effect: EffectUpgradeCostReduction, Value: 0.05},
	{ID: "click_root", Name: "Power of the first click", MaxLevel: 3, Cost: 5000, Effect: EffectClickMultiplier, Value: 0.10},
}

// TreeNodeByID resolves a catalog node, nil when unknown.
func TreeNodeByID(id string) *TreeNode {
	for i := range UpgradeTreeNodes {
		if UpgradeTreeNodes[i].ID == id {
			return &UpgradeTreeNodes[i]
		}
	}
	return nil
}

// MetaUpgradeDef is a prestige-point purchase that survives resets.
type MetaUpgradeDef struct {
	ID     string
	Name   string
	Cost   int
	Effect EffectType // empty for non-multiplier perks
	Value  float64
}

// MetaUpgradeDefs catalog.
var MetaUpgradeDefs = []MetaUpgradeDef{
	{ID: "start_bonus_1", Name: "Seed capital", Cost: 10},
	{ID: "perm_passive_1", Name: "Quantum meme theory", Cost: 25, Effect: EffectPassiveMultiplier, Value: 0.5},
}

// MetaUpgradeByID resolves a meta upgrade definition, nil when unknown.
func MetaUpgradeByID(id string) *MetaUpgradeDef {
	for i := range MetaUpgradeDefs {
		if MetaUpgradeDefs[i].ID == id {
			return &MetaUpgradeDefs[i]
		}
	}
	return nil
}

// AchievementDef has a one-time monotonic trigger and the bonus it grants.
type AchievementDef struct {
	ID        string
	Name      string
	Condition func(*models.GameState) bool
	Apply     func(*models.GameState)
}

// AchievementDefs catalog. Conditions are monotonic so a single sweep after
// each mutation is enough.
var AchievementDefs = []AchievementDef{
	{
		ID:        "views_1",
		Name:      "First steps",
		Condition: func(g *models.GameState) bool { return g.TotalViews >= 1000 },
		Apply:     func(g *models.GameState) { g.RewardBonuses.PassiveMultiplier += 0.01 },
	},
	{
		ID:        "clicks_1",
		Name:      "Click addict",
		Condition: func(g *models.GameState) bool { return g.TotalClicks >= 500 },
		Apply:     func(g *models.GameState) { g.RewardBonuses.ClickMultiplier += 0.01 },
	},
	{
		ID:   "unlock_1",
		Name: "Collector",
		Condition: func(g *models.GameState) bool {
			unlocked := 0
			for _, m := range g.Memes {
				if m.IsUnlocked {
					unlocked++
				}
			}
			return unlocked >= 2
		},
		Apply: func(g *models.GameState) { g.RewardBonuses.PassiveMultiplier += 0.03 },
	},
}

// DailyMetric names the counters daily quests track.
type DailyMetric string

const (
	MetricClicks  DailyMetric = "dailyClicks"
	MetricViews   DailyMetric = "dailyViews"
	MetricLevels  DailyMetric = "dailyLevels"
	MetricBonuses DailyMetric = "dailyBonuses"
)

// DailyQuestDef is a catalog quest; each day three of these are rolled.
type DailyQuestDef struct {
	ID             string
	Name           string
	Target         float64
	Metric         DailyMetric
	RewardPrestige int
}

// DailyQuestDefs catalog.
var DailyQuestDefs = []DailyQuestDef{
	{ID: "daily_clicks_1", Name: "Energetic clicker", Target: 2000, Metric: MetricClicks, RewardPrestige: 1},
	{ID: "daily_views_1", Name: "Start of the hype", Target: 100000, Metric: MetricViews, RewardPrestige: 1},
	{ID: "daily_upgrades_1", Name: "Investor", Target: 50, Metric: MetricLevels, RewardPrestige: 2},
	{ID: "daily_bonus_1", Name: "Lucky one", Target: 3, Metric: MetricBonuses, RewardPrestige: 3},
}

// DailyQuestByID resolves a quest definition, nil when unknown.
func DailyQuestByID(id string) *DailyQuestDef {
	for i := range DailyQuestDefs {
		if DailyQuestDefs[i].ID == id {
			return &DailyQuestDefs[i]
		}
	}
	return nil
}

// InitialMemes is the meme catalog every new player starts from.
var InitialMemes = []models.Meme{
	{ID: "crocodilo", Name: "Crocodilo Bombordiro", Level: 1, IsUnlocked: true, UnlockCost: 0, BaseViews: 1, PassiveViews: 0.2, UpgradeCost: 20},
	{ID: "sahur", Name: "Tung Tung Sahur", Level: 1, IsUnlocked: false, UnlockCost: 1000, BaseViews: 10, PassiveViews: 1.5, UpgradeCost: 250},
	{ID: "skibidi", Name: "Skibidi Toilet", Level: 1, IsUnlocked: false, UnlockCost: 12000, BaseViews: 50, PassiveViews: 8, UpgradeCost: 3000},
}

// DefaultState builds a fresh player document from the catalogs.
func DefaultState() models.GameState {
	memes := make([]models.Meme, len(InitialMemes))
	copy(memes, InitialMemes)

	tree := make(map[string]models.NodeState, len(UpgradeTreeNodes))
	for _, n := range UpgradeTreeNodes {
		tree[n.ID] = models.NodeState{Level: 0}
	}

	metas := make([]models.MetaUpgradeState, len(MetaUpgradeDefs))
	for i, def := range MetaUpgradeDefs {
		metas[i] = models.MetaUpgradeState{ID: def.ID}
	}

	achievements := make(map[string]bool, len(AchievementDefs))
	for _, def := range AchievementDefs {
		achievements[def.ID] = false
	}

	return models.GameState{
		Memes:        memes,
		UpgradeTree:  tree,
		MetaUpgrades: metas,
		Achievements: achievements,
	}
}
