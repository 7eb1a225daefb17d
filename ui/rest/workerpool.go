package rest

import (
	"github.com/AzielCF/az-wrap/pkg/decodeworker"
	"github.com/gofiber/fiber/v2"
)

// GetDecodePoolStats returns real-time decode worker pool statistics
func GetDecodePoolStats(c *fiber.Ctx) error {
	stats := decodeworker.GetGlobalStats()
	return c.JSON(stats)
}
