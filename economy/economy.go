// Package economy holds the deterministic clicker math: income rates, click
// values, upgrade pricing, prestige gain and offline catch-up. Everything
// here is pure: inputs are a player state snapshot, the static catalogs and
// an explicit "now".
package economy

import (
	"math"
	"math/rand"
	"time"

	"meme-clicker-backend/models"
)

func boostActive(b models.ActiveBoost, now time.Time) bool {
	return b.IsActive && b.Expiry > now.UnixMilli()
}

// treeBonus sums value×level over nodes of the given effect type. A node
// contributes only when its own level and every prerequisite's level is > 0.
func treeBonus(state *models.GameState, effect EffectType) float64 {
	var bonus float64
	for _, node := range UpgradeTreeNodes {
		if node.Effect != effect {
			continue
		}
		level := state.UpgradeTree[node.ID].Level
		if level <= 0 {
			continue
		}
		unlocked := true
		for _, prereq := range node.Prerequisites {
			if state.UpgradeTree[prereq].Level <= 0 {
				unlocked = false
				break
			}
		}
		if unlocked {
			bonus += node.Value * float64(level)
		}
	}
	return bonus
}

func metaPassiveBonus(state *models.GameState) float64 {
	var bonus float64
	for _, def := range MetaUpgradeDefs {
		if def.Effect == EffectPassiveMultiplier && state.MetaUpgradePurchased(def.ID) {
			bonus += def.Value
		}
	}
	return bonus
}

// PassiveIncomeRate returns views per second for the given state.
func PassiveIncomeRate(state *models.GameState, now time.Time) float64 {
	var perSecond float64
	for _, meme := range state.Memes {
		if meme.IsUnlocked {
			perSecond += meme.PassiveViews * float64(meme.Level)
		}
	}

	rate := perSecond *
		(1 + treeBonus(state, EffectPassiveMultiplier)) *
		(1 + state.RewardBonuses.PassiveMultiplier) *
		(1 + float64(state.PrestigePoints)*PrestigePointBonus) *
		(1 + metaPassiveBonus(state))

	if boostActive(state.ActiveBoosts.IncomeMultiplier, now) {
		rate *= IncomeBoostMultiplier
	}
	return rate
}

// ClickValue returns views earned by one tap with the active meme.
func ClickValue(state *models.GameState, now time.Time) float64 {
	clickMultiplier := (1 + treeBonus(state, EffectClickMultiplier)) *
		(1 + state.RewardBonuses.ClickMultiplier) *
		(1 + float64(state.PrestigePoints)*PrestigePointBonus)

	meme := state.ActiveMeme()
	if meme == nil {
		return clickMultiplier
	}

	value := meme.BaseViews * float64(meme.Level) * clickMultiplier
	if boostActive(state.ActiveBoosts.ClickFrenzy, now) {
		value *= ClickFrenzyMultiplier
	}
	return value
}

func geometricSum(baseCost, ratio float64, levels int) float64 {
	if ratio == 1 {
		return baseCost * float64(levels)
	}
	return baseCost * (1 - math.Pow(ratio, float64(levels))) / (1 - ratio)
}

// UpgradeCost prices buying levels for a meme. requested > 0 buys exactly
// that many levels; requested <= 0 buys as many as the player can afford.
// When not even one level is affordable in max mode, both returns are zero.
func UpgradeCost(state *models.GameState, memeID string, requested int) (totalCost float64, levels int) {
	meme := state.MemeByID(memeID)
	if meme == nil {
		return 0, 0
	}

	costReduction := 1 - treeBonus(state, EffectUpgradeCostReduction)
	baseCost := meme.UpgradeCost

	if requested > 0 {
		levels = requested
		totalCost = geometricSum(baseCost, UpgradeCostRatio, levels)
	} else {
		available := state.TotalViews / costReduction
		if available < baseCost {
			return 0, 0
		}
		levels = int(math.Floor(
			math.Log(1-(available/baseCost)*(1-UpgradeCostRatio)) / math.Log(UpgradeCostRatio),
		))
		if levels <= 0 {
			return 0, 0
		}
		totalCost = geometricSum(baseCost, UpgradeCostRatio, levels)
	}

	return math.Ceil(totalCost * costReduction), levels
}

// PrestigeGain converts accumulated views into prestige points. Below the
// threshold the gain is zero.
func PrestigeGain(views float64) int {
	if views < PrestigeThreshold {
		return 0
	}
	return int(math.Floor(5 * math.Log10(views/PrestigeThreshold)))
}

// OfflineEarnings computes catch-up views for elapsed seconds away, capped
// at the offline window. Short gaps inside the dead zone earn nothing, so
// rapid reconnects stay silent.
func OfflineEarnings(state *models.GameState, elapsedSeconds int64, now time.Time) (earned float64, effective int64) {
	effective = elapsedSeconds
	if effective > MaxOfflineSeconds {
		effective = MaxOfflineSeconds
	}
	if effective <= OfflineDeadZoneSeconds {
		return 0, 0
	}
	earned = math.Floor(PassiveIncomeRate(state, now) * float64(effective))
	return earned, effective
}

// CheckAchievements sweeps the catalog and applies any newly met one-time
// rewards in place.
func CheckAchievements(state *models.GameState) {
	if state.Achievements == nil {
		state.Achievements = make(map[string]bool, len(AchievementDefs))
	}
	for _, def := range AchievementDefs {
		if !state.Achievements[def.ID] && def.Condition(state) {
			state.Achievements[def.ID] = true
			def.Apply(state)
		}
	}
}

// UpdateDailyProgress bumps a daily metric and advances any rolled quest
// tracking it.
func UpdateDailyProgress(state *models.GameState, metric DailyMetric, value float64) {
	switch metric {
	case MetricClicks:
		state.Daily.Progress.DailyClicks += value
	case MetricViews:
		state.Daily.Progress.DailyViews += value
	case MetricLevels:
		state.Daily.Progress.DailyLevels += value
	case MetricBonuses:
		state.Daily.Progress.DailyBonuses += value
	}

	for i := range state.Daily.Quests {
		quest := &state.Daily.Quests[i]
		def := DailyQuestByID(quest.ID)
		if def == nil || def.Metric != metric || quest.IsCompleted {
			continue
		}
		quest.Progress = dailyMetricValue(state, metric)
		if quest.Progress >= def.Target {
			quest.IsCompleted = true
		}
	}
}

func dailyMetricValue(state *models.GameState, metric DailyMetric) float64 {
	switch metric {
	case MetricClicks:
		return state.Daily.Progress.DailyClicks
	case MetricViews:
		return state.Daily.Progress.DailyViews
	case MetricLevels:
		return state.Daily.Progress.DailyLevels
	case MetricBonuses:
		return state.Daily.Progress.DailyBonuses
	}
	return 0
}

// ResetDailiesIfNeeded re-rolls the daily quest set when the stored day does
// not match today (or no quests were ever rolled).
func ResetDailiesIfNeeded(state *models.GameState, now time.Time) {
	today := now.Format("2006-01-02")
	if state.Daily.LastReset == today && len(state.Daily.Quests) > 0 {
		return
	}
	state.Daily.LastReset = today
	state.Daily.Progress = models.DailyProgress{}

	picks := rand.Perm(len(DailyQuestDefs))
	count := 3
	if count > len(picks) {
		count = len(picks)
	}
	quests := make([]models.DailyQuest, 0, count)
	for _, idx := range picks[:count] {
		quests = append(quests, models.DailyQuest{ID: DailyQuestDefs[idx].ID})
	}
	state.Daily.Quests = quests
}
