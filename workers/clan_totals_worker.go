package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"meme-clicker-backend/models"

	"gorm.io/gorm"
)

// ClanTotalsSyncer refreshes the denormalized clans.total_views column from
// member game states so clan listings don't re-aggregate on every read.
type ClanTotalsSyncer struct {
	DB *gorm.DB
}

func NewClanTotalsSyncer(db *gorm.DB) *ClanTotalsSyncer {
	return &ClanTotalsSyncer{DB: db}
}

// SyncOnce recomputes every clan's total in one pass over the member rows.
func (s *ClanTotalsSyncer) SyncOnce() error {
	rows, err := s.DB.Raw("SELECT clan_id, game_state FROM users WHERE clan_id IS NOT NULL").Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	totals := make(map[uint]float64)
	for rows.Next() {
		var clanID uint
		var raw []byte
		if err := rows.Scan(&clanID, &raw); err != nil {
			continue
		}
		var state models.GameState
		if err := json.Unmarshal(raw, &state); err != nil {
			continue
		}
		totals[clanID] += state.TotalViews
	}

	for id, total := range totals {
		if err := s.DB.Model(&models.Clan{}).Where("id = ?", id).
			Update("total_views", total).Error; err != nil {
			return err
		}
	}
	return nil
}

// PollClanTotals runs the refresh on a fixed interval until the context is
// cancelled.
func PollClanTotals(ctx context.Context, syncer *ClanTotalsSyncer, pollInterval time.Duration) {
	log.Println("Starting clan totals refresh...")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Clan totals refresh stopped.")
			return
		case <-ticker.C:
			if err := syncer.SyncOnce(); err != nil {
				log.Printf("Failed to refresh clan totals: %v", err)
			}
		}
	}
}
