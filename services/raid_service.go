package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"meme-clicker-backend/clock"
	"meme-clicker-backend/economy"
	"meme-clicker-backend/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RaidService runs the per-clan boss encounters: lazy spawning sized to the
// clan's income, atomic damage application, and end-of-raid settlement.
type RaidService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewRaidService(db *gorm.DB, clk clock.Clock) *RaidService {
	return &RaidService{DB: db, Clock: clk}
}

// clanHourlyIncome sums every member's passive rate over one hour.
func (s *RaidService) clanHourlyIncome(tx *gorm.DB, clanID uint, now time.Time) (float64, error) {
	var members []models.User
	if err := tx.Where("clan_id = ?", clanID).Find(&members).Error; err != nil {
		return 0, err
	}
	var perSecond float64
	for i := range members {
		perSecond += economy.PassiveIncomeRate(&members[i].GameState, now)
	}
	return perSecond * 3600, nil
}

// GetForClan returns the clan's current raid, spawning one when none is
// running. A raid that ran out of time or health is settled before a new
// one spawns.
func (s *RaidService) GetForClan(clanID uint) (*models.RaidProjection, error) {
	now := s.Clock.Now()

	var stale []models.Raid
	if err := s.DB.Where("clan_id = ? AND is_active = ? AND (end_date <= ? OR boss_health <= 0)",
		clanID, true, now).Find(&stale).Error; err != nil {
		return nil, err
	}
	for i := range stale {
		if err := s.settle(&stale[i]); err != nil {
			return nil, err
		}
	}

	var raid models.Raid
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var clan models.Clan
		if err := tx.First(&clan, clanID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: clan %d", ErrNotFound, clanID)
			}
			return err
		}

		err := tx.Where("clan_id = ? AND is_active = ? AND end_date > ? AND boss_health > 0",
			clanID, true, now).First(&raid).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		hourly, err := s.clanHourlyIncome(tx, clanID, now)
		if err != nil {
			return err
		}
		maxHealth := math.Max(economy.RaidMinBossHealth, hourly*economy.RaidHealthHours)

		raid = models.Raid{
			ClanID:     clanID,
			BossHealth: maxHealth,
			MaxHealth:  maxHealth,
			StartDate:  now,
			EndDate:    now.Add(economy.RaidDurationHours * time.Hour),
			IsActive:   true,
		}
		// The partial unique index on (clan_id) WHERE is_active turns a
		// concurrent spawn into a no-op; pick up the winner's raid then.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&raid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("clan_id = ? AND is_active = ?", clanID, true).First(&raid).Error
		}
		log.Printf("[raids] spawned raid %d for clan %d, boss health %.0f", raid.ID, clanID, maxHealth)
		return nil
	})
	if err != nil {
		return nil, err
	}

	participants, err := s.Participants(raid.ID)
	if err != nil {
		return nil, err
	}
	return &models.RaidProjection{Raid: raid, Participants: participants}, nil
}

// Attack applies one hit. The damage is always recomputed server-side from
// the attacker's own state; client-submitted damage values are never
// trusted. Health decrement and ledger upsert share one transaction so
// concurrent attackers cannot lose updates.
func (s *RaidService) Attack(raidID uint, userID string) (newHealth float64, err error) {
	now := s.Clock.Now()
	var defeated bool

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var attacker models.User
		if err := tx.Where("telegram_id = ?", userID).First(&attacker).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, userID)
			}
			return err
		}
		damage := economy.ClickValue(&attacker.GameState, now)

		res := tx.Model(&models.Raid{}).
			Where("id = ? AND is_active = ? AND boss_health > 0 AND end_date > ?", raidID, true, now).
			Update("boss_health",
				gorm.Expr("CASE WHEN boss_health - ? < 0 THEN 0 ELSE boss_health - ? END", damage, damage))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: raid is inactive or does not exist", ErrBadRequest)
		}

		participant := models.RaidParticipant{RaidID: raidID, UserID: userID, DamageDealt: damage}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "raid_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"damage_dealt": gorm.Expr("damage_dealt + ?", damage),
			}),
		}).Create(&participant).Error; err != nil {
			return err
		}

		var raid models.Raid
		if err := tx.First(&raid, raidID).Error; err != nil {
			return err
		}
		newHealth = raid.BossHealth
		defeated = raid.BossHealth <= 0
		return nil
	})
	if err != nil {
		return 0, err
	}

	if defeated {
		var raid models.Raid
		if err := s.DB.First(&raid, raidID).Error; err == nil && raid.IsActive {
			if err := s.settle(&raid); err != nil {
				log.Printf("[raids] settlement of defeated raid %d failed: %v", raidID, err)
			}
		}
	}
	return newHealth, nil
}

// Participants returns the damage ledger ordered by contribution.
func (s *RaidService) Participants(raidID uint) ([]models.RaidParticipant, error) {
	var participants []models.RaidParticipant
	err := s.DB.Where("raid_id = ?", raidID).
		Order("damage_dealt DESC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []models.RaidParticipant{}
	}
	return participants, nil
}

// prestigeReward returns the tiered payout for a ranked participant.
// Expired-undefeated raids pay half, with nothing below the podium.
func prestigeReward(rank int, defeated bool) int {
	if defeated {
		switch rank {
		case 0:
			return 10
		case 1:
			return 5
		case 2:
			return 3
		}
		return 1
	}
	switch rank {
	case 0:
		return 5
	case 1:
		return 2
	case 2:
		return 1
	}
	return 0
}

// settle closes a raid: deactivates it, ranks the ledger by damage and pays
// tiered prestige rewards into each participant's stored state exactly once.
func (s *RaidService) settle(raid *models.Raid) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Raid{}).
			Where("id = ? AND is_active = ?", raid.ID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // another sweep got here first
		}

		var participants []models.RaidParticipant
		if err := tx.Where("raid_id = ? AND reward_claimed = ?", raid.ID, false).
			Order("damage_dealt DESC").
			Find(&participants).Error; err != nil {
			return err
		}

		defeated := raid.BossHealth <= 0
		for rank, p := range participants {
			reward := prestigeReward(rank, defeated)
			if reward > 0 {
				var user models.User
				if err := tx.Where("telegram_id = ?", p.UserID).First(&user).Error; err != nil {
					if err == gorm.ErrRecordNotFound {
						continue
					}
					return err
				}
				user.GameState.PrestigePoints += reward
				if err := tx.Model(&models.User{}).
					Where("telegram_id = ?", p.UserID).
					Update("game_state", user.GameState).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&models.RaidParticipant{}).
				Where("raid_id = ? AND user_id = ?", p.RaidID, p.UserID).
				Update("reward_claimed", true).Error; err != nil {
				return err
			}
		}

		log.Printf("[raids] raid %d settled (defeated=%t, participants=%d)", raid.ID, defeated, len(participants))
		return nil
	})
}

// SettleDueRaids sweeps every raid whose timer ran out or whose boss died
// and settles it.
func (s *RaidService) SettleDueRaids() error {
	now := s.Clock.Now()
	var due []models.Raid
	if err := s.DB.Where("is_active = ? AND (end_date <= ? OR boss_health <= 0)", true, now).
		Find(&due).Error; err != nil {
		return err
	}
	for i := range due {
		if err := s.settle(&due[i]); err != nil {
			return err
		}
	}
	return nil
}

// StartSettlementScheduler runs the settlement sweep every minute.
func (s *RaidService) StartSettlementScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if err := s.SettleDueRaids(); err != nil {
				log.Printf("[raids] settlement sweep failed: %v", err)
			}
		}),
	)
}
