package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"meme-clicker-backend/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ClanService manages clan lifecycle, membership and role workflows. Every
// multi-statement invariant (one clan per player, single leader, last-member
// deletion) runs inside one transaction.
type ClanService struct {
	DB *gorm.DB
}

func NewClanService(db *gorm.DB) *ClanService {
	return &ClanService{DB: db}
}

// Create makes a new clan led by the requester. Fails when the requester is
// already in a clan or the name is taken or out of bounds.
func (s *ClanService) Create(name, leaderID string) (*models.Clan, error) {
	name = strings.TrimSpace(name)
	if leaderID == "" {
		return nil, fmt.Errorf("%w: leader_id is required", ErrBadRequest)
	}
	if length := len([]rune(name)); length < 3 || length > 15 {
		return nil, fmt.Errorf("%w: clan name must be 3-15 characters", ErrBadRequest)
	}

	clan := models.Clan{Name: name, Slug: slug.Make(name), LeaderID: leaderID}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", leaderID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, leaderID)
			}
			return err
		}
		if user.ClanID != nil {
			return fmt.Errorf("%w: already in a clan", ErrConflict)
		}

		var taken int64
		if err := tx.Model(&models.Clan{}).
			Where("name = ? OR slug = ?", clan.Name, clan.Slug).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("%w: clan name already exists", ErrConflict)
		}

		if err := tx.Create(&clan).Error; err != nil {
			// The unique index can still fire under a concurrent create.
			return fmt.Errorf("%w: clan name already exists", ErrConflict)
		}
		return tx.Model(&models.User{}).
			Where("telegram_id = ?", leaderID).
			Updates(map[string]interface{}{"clan_id": clan.ID, "clan_role": models.RoleLeader}).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[clans] clan %q (%d) created by %s", clan.Name, clan.ID, leaderID)
	return &clan, nil
}

// Join adds a clanless player directly to an open clan.
func (s *ClanService) Join(clanID uint, userID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var clan models.Clan
		if err := tx.First(&clan, clanID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: clan %d", ErrNotFound, clanID)
			}
			return err
		}
		var user models.User
		if err := tx.Where("telegram_id = ?", userID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, userID)
			}
			return err
		}
		if user.ClanID != nil {
			return fmt.Errorf("%w: already in a clan", ErrConflict)
		}
		return tx.Model(&models.User{}).
			Where("telegram_id = ?", userID).
			Updates(map[string]interface{}{"clan_id": clanID, "clan_role": models.RoleMember}).Error
	})
}

// Apply files a pending membership application. Duplicate pending
// applications for the same clan and player are rejected.
func (s *ClanService) Apply(clanID uint, userID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var clan models.Clan
		if err := tx.First(&clan, clanID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: clan %d", ErrNotFound, clanID)
			}
			return err
		}
		var user models.User
		if err := tx.Where("telegram_id = ?", userID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, userID)
			}
			return err
		}
		if user.ClanID != nil {
			return fmt.Errorf("%w: already in a clan", ErrConflict)
		}

		var pending int64
		if err := tx.Model(&models.ClanApplication{}).
			Where("clan_id = ? AND user_id = ? AND status = ?", clanID, userID, models.ApplicationPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: application already pending", ErrConflict)
		}

		return tx.Create(&models.ClanApplication{
			ID:     uuid.NewString(),
			ClanID: clanID,
			UserID: userID,
		}).Error
	})
}

// requireManager checks the actor holds leader or officer in the clan.
func requireManager(tx *gorm.DB, clanID uint, actorID string) error {
	var actor models.User
	if err := tx.Where("telegram_id = ? AND clan_id = ?", actorID, clanID).First(&actor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: not a manager of this clan", ErrForbidden)
		}
		return err
	}
	if actor.ClanRole != models.RoleLeader && actor.ClanRole != models.RoleOfficer {
		return fmt.Errorf("%w: requires leader or officer role", ErrForbidden)
	}
	return nil
}

// Approve accepts a pending application and grants membership.
func (s *ClanService) Approve(clanID uint, applicantID, actorID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, clanID, actorID); err != nil {
			return err
		}

		var app models.ClanApplication
		if err := tx.Where("clan_id = ? AND user_id = ? AND status = ?",
			clanID, applicantID, models.ApplicationPending).First(&app).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: no pending application", ErrNotFound)
			}
			return err
		}

		var applicant models.User
		if err := tx.Where("telegram_id = ?", applicantID).First(&applicant).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, applicantID)
			}
			return err
		}
		if applicant.ClanID != nil {
			return fmt.Errorf("%w: applicant already joined a clan", ErrConflict)
		}

		if err := tx.Model(&app).Update("status", models.ApplicationApproved).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("telegram_id = ?", applicantID).
			Updates(map[string]interface{}{"clan_id": clanID, "clan_role": models.RoleMember}).Error
	})
}

// Reject declines a pending application without membership changes.
func (s *ClanService) Reject(clanID uint, applicantID, actorID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, clanID, actorID); err != nil {
			return err
		}
		res := tx.Model(&models.ClanApplication{}).
			Where("clan_id = ? AND user_id = ? AND status = ?", clanID, applicantID, models.ApplicationPending).
			Update("status", models.ApplicationRejected)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: no pending application", ErrNotFound)
		}
		return nil
	})
}

// ChangeRole sets a member's clan role; actor must be leader or officer.
func (s *ClanService) ChangeRole(clanID uint, targetID, newRole, actorID string) error {
	switch newRole {
	case models.RoleLeader, models.RoleOfficer, models.RoleMember:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrBadRequest, newRole)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, clanID, actorID); err != nil {
			return err
		}
		res := tx.Model(&models.User{}).
			Where("telegram_id = ? AND clan_id = ?", targetID, clanID).
			Update("clan_role", newRole)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: target is not a member of this clan", ErrNotFound)
		}
		if newRole == models.RoleLeader {
			// A transfer demotes the previous leader so the clan never
			// carries two leader rows.
			if err := tx.Model(&models.User{}).
				Where("clan_id = ? AND clan_role = ? AND telegram_id <> ?", clanID, models.RoleLeader, targetID).
				Update("clan_role", models.RoleMember).Error; err != nil {
				return err
			}
			return tx.Model(&models.Clan{}).Where("id = ?", clanID).Update("leader_id", targetID).Error
		}
		return nil
	})
}

// Leave removes the player from the clan. The sole remaining member takes
// the clan down with them; a leader with other members must transfer
// leadership first.
func (s *ClanService) Leave(clanID uint, userID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", userID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %s", ErrNotFound, userID)
			}
			return err
		}
		if user.ClanID == nil || *user.ClanID != clanID {
			return fmt.Errorf("%w: not a member of this clan", ErrBadRequest)
		}

		// Count inside the same transaction so two concurrent leavers
		// cannot both decide they are the last member.
		var members int64
		if err := tx.Model(&models.User{}).Where("clan_id = ?", clanID).Count(&members).Error; err != nil {
			return err
		}

		clear := map[string]interface{}{"clan_id": nil, "clan_role": models.RoleMember}
		if members == 1 {
			if err := tx.Model(&models.User{}).Where("telegram_id = ?", userID).Updates(clear).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Clan{}, clanID).Error
		}
		if user.ClanRole == models.RoleLeader {
			return fmt.Errorf("%w: leader must transfer leadership before leaving", ErrForbidden)
		}
		return tx.Model(&models.User{}).Where("telegram_id = ?", userID).Updates(clear).Error
	})
}

// UpdateDescription sets the clan description; leader or officer only.
func (s *ClanService) UpdateDescription(clanID uint, actorID, description string) error {
	if len([]rune(description)) > 100 {
		return fmt.Errorf("%w: description must be at most 100 characters", ErrBadRequest)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, clanID, actorID); err != nil {
			return err
		}
		return tx.Model(&models.Clan{}).Where("id = ?", clanID).Update("description", description).Error
	})
}

// UpdateAvatar sets the clan avatar URL; leader or officer only.
func (s *ClanService) UpdateAvatar(clanID uint, actorID, avatarURL string) error {
	if len(avatarURL) > 255 {
		return fmt.Errorf("%w: avatar URL too long", ErrBadRequest)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, clanID, actorID); err != nil {
			return err
		}
		return tx.Model(&models.Clan{}).Where("id = ?", clanID).Update("avatar_url", avatarURL).Error
	})
}

// GetByID builds the full clan projection: roster sorted by views, pending
// applications oldest first, aggregate member views.
func (s *ClanService) GetByID(clanID uint) (*models.ClanProjection, error) {
	var clan models.Clan
	if err := s.DB.First(&clan, clanID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: clan %d", ErrNotFound, clanID)
		}
		return nil, err
	}

	var users []models.User
	if err := s.DB.Where("clan_id = ?", clanID).Find(&users).Error; err != nil {
		return nil, err
	}

	members := make([]models.ClanMember, 0, len(users))
	var total float64
	for _, u := range users {
		role := u.ClanRole
		if role == "" {
			role = models.RoleMember
		}
		members = append(members, models.ClanMember{
			TelegramID: u.TelegramID,
			Username:   u.Username,
			TotalViews: u.GameState.TotalViews,
			RoleID:     role,
		})
		total += u.GameState.TotalViews
	}
	sort.Slice(members, func(i, j int) bool { return members[i].TotalViews > members[j].TotalViews })

	apps, err := s.Applications(clanID)
	if err != nil {
		return nil, err
	}

	return &models.ClanProjection{
		Clan:         clan,
		Members:      members,
		Applications: apps,
		MemberViews:  total,
	}, nil
}

// GetForUser resolves the player's clan projection, nil when clanless.
func (s *ClanService) GetForUser(telegramID string) (*models.ClanProjection, error) {
	var user models.User
	if err := s.DB.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, telegramID)
		}
		return nil, err
	}
	if user.ClanID == nil {
		return nil, nil
	}
	proj, err := s.GetByID(*user.ClanID)
	if err != nil {
		// The clan row can be gone if the last member just left.
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return proj, nil
}

// Applications lists a clan's pending applications, oldest first.
func (s *ClanService) Applications(clanID uint) ([]models.ClanApplication, error) {
	var apps []models.ClanApplication
	err := s.DB.Where("clan_id = ? AND status = ?", clanID, models.ApplicationPending).
		Order("created_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []models.ClanApplication{}
	}
	return apps, nil
}

// List returns all clans with their member counts.
func (s *ClanService) List() ([]models.ClanLeaderboardEntry, error) {
	return s.aggregate(0)
}

// Leaderboard returns the top 20 clans by summed member views.
func (s *ClanService) Leaderboard() ([]models.ClanLeaderboardEntry, error) {
	return s.aggregate(20)
}

func (s *ClanService) aggregate(limit int) ([]models.ClanLeaderboardEntry, error) {
	var clans []models.Clan
	if err := s.DB.Find(&clans).Error; err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.DB.Where("clan_id IS NOT NULL").Find(&users).Error; err != nil {
		return nil, err
	}

	counts := make(map[uint]int64)
	views := make(map[uint]float64)
	for _, u := range users {
		if u.ClanID == nil {
			continue
		}
		counts[*u.ClanID]++
		views[*u.ClanID] += u.GameState.TotalViews
	}

	entries := make([]models.ClanLeaderboardEntry, 0, len(clans))
	for _, c := range clans {
		entries = append(entries, models.ClanLeaderboardEntry{
			ID:          c.ID,
			Name:        c.Name,
			MemberCount: counts[c.ID],
			TotalViews:  views[c.ID],
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TotalViews > entries[j].TotalViews })

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
