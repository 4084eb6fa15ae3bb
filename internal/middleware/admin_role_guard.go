package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// 管理画面(取引・監査ログ・在庫調整)はADMINのみ。
func AdminRoleGuard() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin)
}

// AuthJWTがcontextに入れたroleが許可リストに含まれるか確認する。
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			for _, r := range allowed {
				if role == r {
					return next(c)
				}
			}
			c.Logger().Warnj(log.JSON{
				"msg":    "role rejected",
				"role":   role,
				"path":   c.Path(),
				"method": c.Request().Method,
			})
			return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
		}
	}
}
