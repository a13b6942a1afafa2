package handlers

import (
	"strconv"

	"meme-clicker-backend/middleware"
	"meme-clicker-backend/services"

	"github.com/gofiber/fiber/v2"
)

func clanID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// identity resolves the acting player: X-User-ID header first, body field
// fallback for deployments that post the id.
func identity(c *fiber.Ctx, bodyID string) string {
	if id := middleware.RequireUser(c); id != "" {
		return id
	}
	return bodyID
}

// SetupClanRoutes wires clan CRUD, membership workflows, role management and
// the raid endpoints.
func SetupClanRoutes(app *fiber.App, clanService *services.ClanService, raidService *services.RaidService) {
	api := app.Group("/api")

	// Static paths ahead of the :id parameter routes.
	api.Get("/clans/leaderboard", func(c *fiber.Ctx) error {
		entries, err := clanService.Leaderboard()
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(entries)
	})

	api.Post("/clans/raid/:raidId/attack", func(c *fiber.Ctx) error {
		raidID, err := clanID(c, "raidId")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid raid id"})
		}
		var req struct {
			UserID string `json:"userId"`
		}
		_ = c.BodyParser(&req)
		userID := identity(c, req.UserID)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user identity"})
		}
		newHealth, err := raidService.Attack(raidID, userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"newBossHealth": newHealth})
	})

	api.Get("/clans", func(c *fiber.Ctx) error {
		clans, err := clanService.List()
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(clans)
	})

	api.Post("/clans", func(c *fiber.Ctx) error {
		var req struct {
			Name     string `json:"name"`
			LeaderID string `json:"leader_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		leaderID := identity(c, req.LeaderID)
		clan, err := clanService.Create(req.Name, leaderID)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(clan)
	})

	api.Get("/clans/:id", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		proj, err := clanService.GetByID(id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(proj)
	})

	api.Post("/clans/:id/join", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			UserID string `json:"user_id"`
		}
		_ = c.BodyParser(&req)
		userID := identity(c, req.UserID)
		if err := clanService.Join(id, userID); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Joined clan"})
	})

	api.Post("/clans/:id/leave", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			UserID string `json:"user_id"`
		}
		_ = c.BodyParser(&req)
		userID := identity(c, req.UserID)
		if err := clanService.Leave(id, userID); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Left clan"})
	})

	api.Post("/clans/:id/apply", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			UserID string `json:"user_id"`
		}
		_ = c.BodyParser(&req)
		userID := identity(c, req.UserID)
		if err := clanService.Apply(id, userID); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Application submitted"})
	})

	api.Get("/clans/:id/applications", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		apps, err := clanService.Applications(id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(apps)
	})

	api.Post("/clans/:id/applications/:userId/approve", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			ChangerID string `json:"changer_id"`
		}
		_ = c.BodyParser(&req)
		actorID := identity(c, req.ChangerID)
		if err := clanService.Approve(id, c.Params("userId"), actorID); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Application approved"})
	})

	api.Post("/clans/:id/applications/:userId/reject", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			ChangerID string `json:"changer_id"`
		}
		_ = c.BodyParser(&req)
		actorID := identity(c, req.ChangerID)
		if err := clanService.Reject(id, c.Params("userId"), actorID); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Application rejected"})
	})

	api.Post("/clans/:id/roles/:userId", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			NewRoleID string `json:"new_role_id"`
			ChangerID string `json:"changer_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		actorID := identity(c, req.ChangerID)
		if err := clanService.ChangeRole(id, c.Params("userId"), req.NewRoleID, actorID); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Role updated"})
	})

	api.Post("/clans/:id/description", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			Description string `json:"description"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := clanService.UpdateDescription(id, middleware.RequireUser(c), req.Description); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Clan description updated"})
	})

	api.Post("/clans/:id/avatar", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		var req struct {
			AvatarURL string `json:"avatar_url"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := clanService.UpdateAvatar(id, middleware.RequireUser(c), req.AvatarURL); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Clan avatar updated"})
	})

	api.Get("/clans/:id/raid", func(c *fiber.Ctx) error {
		id, err := clanID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid clan id"})
		}
		raid, err := raidService.GetForClan(id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(raid)
	})

	api.Get("/users/:telegram_id/clan", func(c *fiber.Ctx) error {
		proj, err := clanService.GetForUser(c.Params("telegram_id"))
		if err != nil {
			return fail(c, err)
		}
		if proj == nil {
			return c.JSON(nil)
		}
		return c.JSON(proj)
	})
}
