package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"

	"meme-clicker-backend/clock"
	"meme-clicker-backend/economy"
	"meme-clicker-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService owns the player-state aggregate: registration, load with
// offline accrual, merge-on-save and the server-side gameplay actions.
type UserService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewUserService(db *gorm.DB, clk clock.Clock) *UserService {
	return &UserService{DB: db, Clock: clk}
}

// Register creates a player row if none exists; repeated calls are no-ops.
// A resolvable, non-self referrer earns one hour of their own passive income
// exactly once, inside the same transaction.
func (s *UserService) Register(telegramID, username string, referrerID *string) error {
	if telegramID == "" {
		return fmt.Errorf("%w: telegram_id is required", ErrBadRequest)
	}

	now := s.Clock.Now()
	state := economy.DefaultState()
	economy.ResetDailiesIfNeeded(&state, now)
	state.LastSaveTime = now.UnixMilli()

	user := models.User{
		TelegramID: telegramID,
		Username:   username,
		ReferrerID: referrerID,
		GameState:  state,
		LastSeen:   now,
		ClanRole:   models.RoleMember,
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already registered, leave state untouched
		}

		if referrerID == nil || *referrerID == "" || *referrerID == telegramID {
			return nil
		}

		var referrer models.User
		if err := tx.Where("telegram_id = ?", *referrerID).First(&referrer).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil // unresolvable referrer, registration still succeeds
			}
			return err
		}

		reward := economy.PassiveIncomeRate(&referrer.GameState, now) * economy.ReferralRewardSecs
		referrer.GameState.Referral.ReferredCount++
		referrer.GameState.Referral.Earnings += reward
		referrer.GameState.TotalViews += reward
		if err := tx.Model(&models.User{}).
			Where("telegram_id = ?", referrer.TelegramID).
			Update("game_state", referrer.GameState).Error; err != nil {
			return err
		}
		log.Printf("[users] referrer %s rewarded %.0f views for inviting %s", referrer.TelegramID, reward, telegramID)
		return nil
	})
}

// LoadState returns the player's state with offline catch-up applied.
// Accrued views are persisted immediately; the attached offline report is
// transient and exists only in the returned copy.
func (s *UserService) LoadState(telegramID string) (*models.GameState, error) {
	now := s.Clock.Now()
	var out *models.GameState

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, telegramID)
			}
			return err
		}

		state := user.GameState
		elapsed := int64(now.Sub(user.LastSeen).Seconds())
		earned, effective := economy.OfflineEarnings(&state, elapsed, now)

		var report *models.OfflineReport
		if effective > 0 {
			state.TotalViews += earned
			report = &models.OfflineReport{TimeAway: effective, ViewsEarned: earned}
		}
		economy.ResetDailiesIfNeeded(&state, now)

		// Persist accrual and daily roll without the transient report.
		state.OfflineReport = nil
		if err := tx.Model(&models.User{}).
			Where("telegram_id = ?", telegramID).
			Updates(map[string]interface{}{"game_state": state, "last_seen": now}).Error; err != nil {
			return err
		}

		state.OfflineReport = report
		state.WalletAddress = user.WalletAddress
		state.IsWalletConnected = user.WalletAddress != nil && *user.WalletAddress != ""
		out = &state
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveState merges a client beacon save into the stored row. Incoming values
// win except for the server-authoritative referral substructure and the
// monotonic lifetime counters; transient report fields never persist.
func (s *UserService) SaveState(telegramID string, incoming models.GameState) error {
	now := s.Clock.Now()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, telegramID)
			}
			return err
		}

		merged := incoming
		merged.OfflineReport = nil
		merged.Referral = user.GameState.Referral
		merged.LastSaveTime = now.UnixMilli()

		// Lifetime counters never move backwards, whatever the client sent.
		if merged.TotalClicks < user.GameState.TotalClicks {
			merged.TotalClicks = user.GameState.TotalClicks
		}
		if merged.PrestigePoints < user.GameState.PrestigePoints {
			merged.PrestigePoints = user.GameState.PrestigePoints
		}

		// The wallet column always mirrors the payload; a null wallet in
		// the document disconnects it.
		updates := map[string]interface{}{
			"game_state":     merged,
			"last_seen":      now,
			"wallet_address": incoming.WalletAddress,
		}
		return tx.Model(&models.User{}).Where("telegram_id = ?", telegramID).Updates(updates).Error
	})
}

// mutate runs a read-modify-write cycle against the player's own row.
func (s *UserService) mutate(telegramID string, fn func(*models.GameState) error) (*models.GameState, error) {
	var out *models.GameState
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, telegramID)
			}
			return err
		}

		state := user.GameState
		if err := fn(&state); err != nil {
			return err
		}
		state.OfflineReport = nil

		if err := tx.Model(&models.User{}).
			Where("telegram_id = ?", telegramID).
			Update("game_state", state).Error; err != nil {
			return err
		}
		out = &state
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Click applies one tap: click value into views, counters, daily metrics and
// a one-time achievement sweep.
func (s *UserService) Click(telegramID string) (*models.GameState, error) {
	now := s.Clock.Now()
	return s.mutate(telegramID, func(state *models.GameState) error {
		earned := economy.ClickValue(state, now)
		state.TotalViews += earned
		state.TotalClicks++
		economy.UpdateDailyProgress(state, economy.MetricClicks, 1)
		economy.UpdateDailyProgress(state, economy.MetricViews, earned)
		economy.CheckAchievements(state)
		return nil
	})
}

// PurchaseMemeLevels buys levels for a meme, rejecting overdrafts before any
// state change. The stored next-level base cost advances by ratio^levels.
func (s *UserService) PurchaseMemeLevels(telegramID, memeID string, requested int) (*models.GameState, error) {
	return s.mutate(telegramID, func(state *models.GameState) error {
		meme := state.MemeByID(memeID)
		if meme == nil {
			return fmt.Errorf("%w: unknown meme %s", ErrBadRequest, memeID)
		}
		cost, levels := economy.UpgradeCost(state, memeID, requested)
		if levels <= 0 {
			return fmt.Errorf("%w: nothing affordable to buy", ErrBadRequest)
		}
		if cost > state.TotalViews {
			return fmt.Errorf("%w: insufficient views", ErrBadRequest)
		}

		state.TotalViews -= cost
		meme.Level += levels
		meme.UpgradeCost = math.Round(meme.UpgradeCost * math.Pow(economy.UpgradeCostRatio, float64(levels)))
		economy.UpdateDailyProgress(state, economy.MetricLevels, float64(levels))
		economy.CheckAchievements(state)
		return nil
	})
}

// UnlockMeme performs the one-time unlock purchase. Already-unlocked or
// unaffordable unlocks are silent no-ops.
func (s *UserService) UnlockMeme(telegramID, memeID string) (*models.GameState, error) {
	return s.mutate(telegramID, func(state *models.GameState) error {
		meme := state.MemeByID(memeID)
		if meme == nil {
			return fmt.Errorf("%w: unknown meme %s", ErrBadRequest, memeID)
		}
		if !meme.IsUnlocked && state.TotalViews >= meme.UnlockCost {
			state.TotalViews -= meme.UnlockCost
			meme.IsUnlocked = true
		}
		economy.CheckAchievements(state)
		return nil
	})
}

// PurchaseTreeNode raises an upgrade-tree node level. Prerequisite nodes must
// already have a level and the node cannot pass its catalog max.
func (s *UserService) PurchaseTreeNode(telegramID, nodeID string) (*models.GameState, error) {
	return s.mutate(telegramID, func(state *models.GameState) error {
		node := economy.TreeNodeByID(nodeID)
		if node == nil {
			return fmt.Errorf("%w: unknown upgrade node %s", ErrBadRequest, nodeID)
		}
		current := state.UpgradeTree[nodeID]
		if current.Level >= node.MaxLevel {
			return fmt.Errorf("%w: node %s already at max level", ErrBadRequest, nodeID)
		}
		for _, prereq := range node.Prerequisites {
			if state.UpgradeTree[prereq].Level <= 0 {
				return fmt.Errorf("%w: prerequisite %s not purchased", ErrBadRequest, prereq)
			}
		}
		if state.TotalViews < node.Cost {
			return fmt.Errorf("%w: insufficient views", ErrBadRequest)
		}

		state.TotalViews -= node.Cost
		if state.UpgradeTree == nil {
			state.UpgradeTree = map[string]models.NodeState{}
		}
		current.Level++
		state.UpgradeTree[nodeID] = current
		return nil
	})
}

// PurchaseMetaUpgrade spends prestige points on a persistent perk.
func (s *UserService) PurchaseMetaUpgrade(telegramID, upgradeID string) (*models.GameState, error) {
	return s.mutate(telegramID, func(state *models.GameState) error {
		def := economy.MetaUpgradeByID(upgradeID)
		if def == nil {
			return fmt.Errorf("%w: unknown meta upgrade %s", ErrBadRequest, upgradeID)
		}
		for i := range state.MetaUpgrades {
			meta := &state.MetaUpgrades[i]
			if meta.ID != upgradeID {
				continue
			}
			if meta.IsPurchased {
				return fmt.Errorf("%w: already purchased", ErrConflict)
			}
			if state.PrestigePoints < def.Cost {
				return fmt.Errorf("%w: insufficient prestige points", ErrBadRequest)
			}
			state.PrestigePoints -= def.Cost
			meta.IsPurchased = true
			return nil
		}
		return fmt.Errorf("%w: unknown meta upgrade %s", ErrBadRequest, upgradeID)
	})
}

// ClaimDailyQuest pays out a completed, unclaimed quest.
func (s *UserService) ClaimDailyQuest(telegramID, questID string) (*models.GameState, error) {
	return s.mutate(telegramID, func(state *models.GameState) error {
		def := economy.DailyQuestByID(questID)
		if def == nil {
			return fmt.Errorf("%w: unknown quest %s", ErrBadRequest, questID)
		}
		for i := range state.Daily.Quests {
			quest := &state.Daily.Quests[i]
			if quest.ID != questID {
				continue
			}
			if !quest.IsCompleted {
				return fmt.Errorf("%w: quest not completed", ErrBadRequest)
			}
			if quest.IsClaimed {
				return fmt.Errorf("%w: quest already claimed", ErrConflict)
			}
			quest.IsClaimed = true
			state.PrestigePoints += def.RewardPrestige
			return nil
		}
		return fmt.Errorf("%w: quest %s not rolled today", ErrBadRequest, questID)
	})
}

// PrestigeReset trades accumulated views for prestige points and starts the
// economy over. Meta upgrades and clan membership survive; the daily set
// re-rolls when the reset lands on a new day.
func (s *UserService) PrestigeReset(telegramID string) (*models.GameState, error) {
	now := s.Clock.Now()
	return s.mutate(telegramID, func(state *models.GameState) error {
		gain := economy.PrestigeGain(state.TotalViews)
		if gain <= 0 {
			return fmt.Errorf("%w: not enough views to prestige", ErrBadRequest)
		}

		fresh := economy.DefaultState()
		fresh.PrestigePoints = state.PrestigePoints + gain
		fresh.MetaUpgrades = state.MetaUpgrades
		fresh.Referral = state.Referral
		fresh.Daily = state.Daily
		fresh.LastSaveTime = now.UnixMilli()
		economy.ResetDailiesIfNeeded(&fresh, now)

		if fresh.MetaUpgradePurchased("start_bonus_1") {
			fresh.TotalViews = economy.StartBonusViews
		}

		*state = fresh
		return nil
	})
}

// ReferralEntry is one invited player.
type ReferralEntry struct {
	TelegramID string `json:"telegram_id"`
	Username   string `json:"username"`
}

// Referrals lists players who registered with this user as referrer.
func (s *UserService) Referrals(telegramID string) ([]ReferralEntry, error) {
	var entries []ReferralEntry
	err := s.DB.Model(&models.User{}).
		Select("telegram_id", "username").
		Where("referrer_id = ?", telegramID).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ReferralEntry{}
	}
	return entries, nil
}

// LeaderboardEntry is one row of the global player leaderboard.
type LeaderboardEntry struct {
	Username       string  `json:"username"`
	PrestigePoints int     `json:"prestigePoints"`
	TotalViews     float64 `json:"totalViews"`
}

// Leaderboard scans every player, ranks by prestige points then views, and
// returns the top 10. Rows with absent or unparsable state are skipped
// rather than failing the whole projection.
func (s *UserService) Leaderboard() ([]LeaderboardEntry, error) {
	rows, err := s.DB.Raw("SELECT username, game_state FROM users").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var username sql.NullString
		var raw sql.NullString
		if err := rows.Scan(&username, &raw); err != nil {
			continue
		}
		if !raw.Valid {
			continue
		}
		var state models.GameState
		if err := json.Unmarshal([]byte(raw.String), &state); err != nil {
			continue
		}
		name := username.String
		if name == "" {
			name = "Anonymous"
		}
		entries = append(entries, LeaderboardEntry{
			Username:       name,
			PrestigePoints: state.PrestigePoints,
			TotalViews:     state.TotalViews,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PrestigePoints != entries[j].PrestigePoints {
			return entries[i].PrestigePoints > entries[j].PrestigePoints
		}
		return entries[i].TotalViews > entries[j].TotalViews
	})

	if len(entries) > 10 {
		entries = entries[:10]
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return entries, nil
}
