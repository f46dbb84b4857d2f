package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/app"
)

// @title           PhoneAuth API
// @version         1.0
// @description     PhoneAuth verifies phone numbers with one-time codes over SMS or WhatsApp and issues a signed identity token.
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token returned after verification.
func main() {
	svc := app.New()
	<-svc.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	svc.Stop(ctx)
}
