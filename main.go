package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpgate/internal/app"
)

// @title           otpgate API
// @version         1.0
// @description     One-time-code identity verification: email and SMS codes, dual-channel login, registration, password reset and session tokens.
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	if err := app.New().Run(context.Background()); err != nil {
		slog.Error("otpgate stopped with error", "error", err)
		os.Exit(1)
	}
}
