package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fileforge/internal/auth"
	"fileforge/internal/repositories"
	"fileforge/internal/utils"
)

// Auth validates the bearer token and sets owner_id on the context.
// Grounded on the teacher's AuthMiddleware (internal/handlers/auth_middleware.go)
// but stripped of its Clerk user-sync path: user management is out of
// scope (spec §1), so the only thing this middleware resolves is the
// owner_id carried in the token's subject claim. It still provisions a
// placeholder row via users, adapted from the teacher's sync-on-first-
// request pattern, so files.owner_id/jobs.owner_id never dangle.
func Auth(secretKey string, users *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.SendError(c, http.StatusUnauthorized, "Unauthorized: missing token", nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.SendError(c, http.StatusUnauthorized, "Unauthorized: invalid header format", nil)
			return
		}

		ownerID, err := auth.VerifyToken(secretKey, parts[1])
		if err != nil {
			utils.SendError(c, http.StatusUnauthorized, "Unauthorized: invalid token", err)
			return
		}

		if err := users.EnsureExists(c.Request.Context(), ownerID); err != nil {
			slog.Error("failed to provision owner row", "owner_id", ownerID, "error", err)
			utils.SendError(c, http.StatusInternalServerError, "Internal error", err)
			return
		}

		c.Set("owner_id", ownerID)
		c.Next()
	}
}
