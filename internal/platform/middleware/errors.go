package middleware

import "github.com/labstack/echo/v4"

// errorBody matches the envelope the API handlers return on failure.
func errorBody(code, message string) echo.Map {
	return echo.Map{"success": false, "code": code, "message": message}
}
