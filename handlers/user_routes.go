package handlers

import (
	"meme-clicker-backend/models"
	"meme-clicker-backend/services"

	"github.com/gofiber/fiber/v2"
)

// SetupUserRoutes wires registration, state load/save, the server-side
// gameplay actions and the player leaderboard.
func SetupUserRoutes(app *fiber.App, userService *services.UserService) {
	api := app.Group("/api")

	api.Post("/register", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID string  `json:"telegram_id"`
			Username   string  `json:"username"`
			ReferrerID *string `json:"referrer_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.TelegramID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "telegram_id is required"})
		}
		if err := userService.Register(req.TelegramID, req.Username, req.ReferrerID); err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User registered successfully"})
	})

	api.Get("/users/:telegram_id/state", func(c *fiber.Ctx) error {
		state, err := userService.LoadState(c.Params("telegram_id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Post("/users/:telegram_id/state", func(c *fiber.Ctx) error {
		var req struct {
			GameState *models.GameState `json:"gameState"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.GameState == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "gameState is required"})
		}
		if err := userService.SaveState(c.Params("telegram_id"), *req.GameState); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Game state saved successfully"})
	})

	api.Post("/users/:telegram_id/click", func(c *fiber.Ctx) error {
		state, err := userService.Click(c.Params("telegram_id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Post("/users/:telegram_id/memes/:memeId/upgrade", func(c *fiber.Ctx) error {
		var req struct {
			Levels int `json:"levels"`
		}
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		state, err := userService.PurchaseMemeLevels(c.Params("telegram_id"), c.Params("memeId"), req.Levels)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Post("/users/:telegram_id/memes/:memeId/unlock", func(c *fiber.Ctx) error {
		state, err := userService.UnlockMeme(c.Params("telegram_id"), c.Params("memeId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Post("/users/:telegram_id/tree/:nodeId/purchase", func(c *fiber.Ctx) error {
		state, err := userService.PurchaseTreeNode(c.Params("telegram_id"), c.Params("nodeId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Post("/users/:telegram_id/meta/:upgradeId/purchase", func(c *fiber.Ctx) error {
		state, err := userService.PurchaseMetaUpgrade(c.Params("telegram_id"), c.Params("upgradeId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Post("/users/:telegram_id/quests/:questId/claim", func(c *fiber.Ctx) error {
		state, err := userService.ClaimDailyQuest(c.Params("telegram_id"), c.Params("questId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Post("/users/:telegram_id/prestige", func(c *fiber.Ctx) error {
		state, err := userService.PrestigeReset(c.Params("telegram_id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	api.Get("/users/:telegram_id/referrals", func(c *fiber.Ctx) error {
		referrals, err := userService.Referrals(c.Params("telegram_id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(referrals)
	})

	api.Get("/leaderboard", func(c *fiber.Ctx) error {
		entries, err := userService.Leaderboard()
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(entries)
	})
}
