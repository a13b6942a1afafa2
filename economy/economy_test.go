package economy_test

import (
	"math"
	"testing"
	"time"

	"meme-clicker-backend/economy"
	"meme-clicker-backend/models"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPassiveIncomeRateDefaultState(t *testing.T) {
	state := economy.DefaultState()
	// Only the starter meme is unlocked: 0.2 views/s at level 1.
	if got := economy.PassiveIncomeRate(&state, testNow); !almostEqual(got, 0.2) {
		t.Errorf("PassiveIncomeRate = %v, want 0.2", got)
	}
}

func TestPassiveIncomeRateMultipliers(t *testing.T) {
	state := economy.DefaultState()
	state.Memes[0].PassiveViews = 10
	base := economy.PassiveIncomeRate(&state, testNow)
	if !almostEqual(base, 10) {
		t.Fatalf("base rate = %v, want 10", base)
	}

	tests := []struct {
		name   string
		mutate func(*models.GameState)
		want   float64
	}{
		{
			name:   "prestige points",
			mutate: func(g *models.GameState) { g.PrestigePoints = 50 },
			want:   10 * 2, // 1 + 50*0.02
		},
		{
			name:   "reward bonus",
			mutate: func(g *models.GameState) { g.RewardBonuses.PassiveMultiplier = 0.5 },
			want:   15,
		},
		{
			name: "income boost active",
			mutate: func(g *models.GameState) {
				g.ActiveBoosts.IncomeMultiplier = models.ActiveBoost{IsActive: true, Expiry: testNow.Add(time.Minute).UnixMilli()}
			},
			want: 70,
		},
		{
			name: "income boost expired",
			mutate: func(g *models.GameState) {
				g.ActiveBoosts.IncomeMultiplier = models.ActiveBoost{IsActive: true, Expiry: testNow.Add(-time.Minute).UnixMilli()}
			},
			want: 10,
		},
		{
			name: "meta passive upgrade",
			mutate: func(g *models.GameState) {
				for i := range g.MetaUpgrades {
					if g.MetaUpgrades[i].ID == "perm_passive_1" {
						g.MetaUpgrades[i].IsPurchased = true
					}
				}
			},
			want: 15,
		},
		{
			name: "tree passive bonus",
			mutate: func(g *models.GameState) {
				g.UpgradeTree["passive_root"] = models.NodeState{Level: 1}
			},
			want: 11,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := economy.DefaultState()
			s.Memes[0].PassiveViews = 10
			tc.mutate(&s)
			if got := economy.PassiveIncomeRate(&s, testNow); !almostEqual(got, tc.want) {
				t.Errorf("PassiveIncomeRate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTreeBonusRequiresPrerequisites(t *testing.T) {
	state := economy.DefaultState()
	state.Memes[0].PassiveViews = 10

	// Child leveled alone contributes nothing while the root is locked.
	state.UpgradeTree["passive_boost_1"] = models.NodeState{Level: 1}
	if got := economy.PassiveIncomeRate(&state, testNow); !almostEqual(got, 10) {
		t.Errorf("rate with orphaned child node = %v, want 10", got)
	}

	state.UpgradeTree["passive_root"] = models.NodeState{Level: 1}
	// Root 0.10 + child 0.15 once unlocked.
	if got := economy.PassiveIncomeRate(&state, testNow); !almostEqual(got, 12.5) {
		t.Errorf("rate with root+child = %v, want 12.5", got)
	}
}

func TestClickValue(t *testing.T) {
	state := economy.DefaultState()
	if got := economy.ClickValue(&state, testNow); !almostEqual(got, 1) {
		t.Errorf("default click = %v, want 1", got)
	}

	state.PrestigePoints = 50
	if got := economy.ClickValue(&state, testNow); !almostEqual(got, 2) {
		t.Errorf("prestige click = %v, want 2", got)
	}

	state = economy.DefaultState()
	state.ActiveBoosts.ClickFrenzy = models.ActiveBoost{IsActive: true, Expiry: testNow.Add(time.Second).UnixMilli()}
	if got := economy.ClickValue(&state, testNow); !almostEqual(got, 500) {
		t.Errorf("frenzy click = %v, want 500", got)
	}
}

func TestClickValueLockedActiveIndexFallsBack(t *testing.T) {
	state := economy.DefaultState()
	state.ActiveMemeIndex = 2 // skibidi is still locked
	if got := economy.ClickValue(&state, testNow); !almostEqual(got, 1) {
		t.Errorf("click with locked active index = %v, want starter meme value 1", got)
	}
}

func TestUpgradeCostFixedCount(t *testing.T) {
	state := economy.DefaultState()

	cost, levels := economy.UpgradeCost(&state, "crocodilo", 1)
	if levels != 1 || cost != 20 {
		t.Errorf("one level: cost=%v levels=%d, want 20/1", cost, levels)
	}

	cost, levels = economy.UpgradeCost(&state, "crocodilo", 3)
	// 20 * (1 - 1.12^3) / (1 - 1.12) = 67.488, rounded up.
	if levels != 3 || cost != 68 {
		t.Errorf("three levels: cost=%v levels=%d, want 68/3", cost, levels)
	}

	if cost, levels = economy.UpgradeCost(&state, "nope", 1); cost != 0 || levels != 0 {
		t.Errorf("unknown meme: cost=%v levels=%d, want 0/0", cost, levels)
	}
}

func TestUpgradeCostMaxAffordable(t *testing.T) {
	budgets := []float64{0, 19, 20, 100, 500, 12345, 1e6}
	for _, budget := range budgets {
		state := economy.DefaultState()
		state.TotalViews = budget

		cost, levels := economy.UpgradeCost(&state, "crocodilo", 0)
		if budget < 20 {
			if cost != 0 || levels != 0 {
				t.Errorf("budget %v: expected no-op, got cost=%v levels=%d", budget, cost, levels)
			}
			continue
		}
		if levels <= 0 {
			t.Errorf("budget %v: expected at least one level", budget)
			continue
		}
		if cost > budget {
			t.Errorf("budget %v: cost %v exceeds currency", budget, cost)
		}
		// One more level must not have been affordable.
		more, _ := economy.UpgradeCost(&state, "crocodilo", levels+1)
		if more <= budget {
			t.Errorf("budget %v: %d levels cost %v, but %d levels (%v) were still affordable",
				budget, levels, cost, levels+1, more)
		}
	}
}

func TestPrestigeGain(t *testing.T) {
	tests := []struct {
		views float64
		want  int
	}{
		{0, 0},
		{1e11, 0},
		{1e12, 0},
		{1e13, 5},
		{1e14, 10},
	}
	for _, tc := range tests {
		if got := economy.PrestigeGain(tc.views); got != tc.want {
			t.Errorf("PrestigeGain(%v) = %d, want %d", tc.views, got, tc.want)
		}
	}
}

func TestOfflineEarnings(t *testing.T) {
	state := economy.DefaultState()
	state.Memes[0].PassiveViews = 10 // 10 views/s

	earned, effective := economy.OfflineEarnings(&state, 100, testNow)
	if earned != 1000 || effective != 100 {
		t.Errorf("100s away: earned=%v effective=%d, want 1000/100", earned, effective)
	}

	// Inside the dead zone nothing accrues.
	earned, effective = economy.OfflineEarnings(&state, 8, testNow)
	if earned != 0 || effective != 0 {
		t.Errorf("8s away: earned=%v effective=%d, want 0/0", earned, effective)
	}

	// Long absences cap at the offline window.
	tenDays := int64(10 * 24 * 60 * 60)
	_, effective = economy.OfflineEarnings(&state, tenDays, testNow)
	if effective != economy.MaxOfflineSeconds {
		t.Errorf("10d away: effective=%d, want cap %d", effective, int64(economy.MaxOfflineSeconds))
	}
}

func TestCheckAchievementsFiresOnce(t *testing.T) {
	state := economy.DefaultState()
	state.TotalViews = 1500

	economy.CheckAchievements(&state)
	if !state.Achievements["views_1"] {
		t.Fatal("views_1 should be unlocked")
	}
	if !almostEqual(state.RewardBonuses.PassiveMultiplier, 0.01) {
		t.Fatalf("passive bonus = %v, want 0.01", state.RewardBonuses.PassiveMultiplier)
	}

	economy.CheckAchievements(&state)
	if !almostEqual(state.RewardBonuses.PassiveMultiplier, 0.01) {
		t.Errorf("reward applied twice: %v", state.RewardBonuses.PassiveMultiplier)
	}
}

func TestDailyQuestProgressAndReset(t *testing.T) {
	state := economy.DefaultState()
	economy.ResetDailiesIfNeeded(&state, testNow)
	if len(state.Daily.Quests) != 3 {
		t.Fatalf("rolled %d quests, want 3", len(state.Daily.Quests))
	}
	if state.Daily.LastReset != "2025-06-01" {
		t.Fatalf("lastReset = %q", state.Daily.LastReset)
	}

	// Force a known quest so completion is deterministic.
	state.Daily.Quests = []models.DailyQuest{{ID: "daily_upgrades_1"}}
	economy.UpdateDailyProgress(&state, economy.MetricLevels, 49)
	if state.Daily.Quests[0].IsCompleted {
		t.Fatal("quest completed below target")
	}
	economy.UpdateDailyProgress(&state, economy.MetricLevels, 1)
	if !state.Daily.Quests[0].IsCompleted {
		t.Fatal("quest not completed at target")
	}

	// Same day: no re-roll.
	economy.ResetDailiesIfNeeded(&state, testNow)
	if len(state.Daily.Quests) != 1 || !state.Daily.Quests[0].IsCompleted {
		t.Fatal("same-day reset should keep the quest set")
	}

	// Next day: progress zeroed, fresh set.
	economy.ResetDailiesIfNeeded(&state, testNow.Add(24*time.Hour))
	if state.Daily.LastReset != "2025-06-02" {
		t.Errorf("lastReset = %q, want 2025-06-02", state.Daily.LastReset)
	}
	if state.Daily.Progress.DailyLevels != 0 {
		t.Errorf("daily progress not reset: %v", state.Daily.Progress.DailyLevels)
	}
	if len(state.Daily.Quests) != 3 {
		t.Errorf("rolled %d quests, want 3", len(state.Daily.Quests))
	}
}
