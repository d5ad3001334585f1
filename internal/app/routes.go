package app

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/7310C7310C/sigao-ai/internal/middleware"
	"github.com/7310C7310C/sigao-ai/internal/modules/ai"
	"github.com/7310C7310C/sigao-ai/internal/modules/auth"
	"github.com/7310C7310C/sigao-ai/internal/modules/bible"
	"github.com/7310C7310C/sigao-ai/internal/modules/prompt"
	pkgredis "github.com/7310C7310C/sigao-ai/internal/pkg/redis"
)

func (a *App) registerRoutes(rc *pkgredis.Client) {
	var rdb *goredis.Client
	if rc != nil {
		rdb = rc.Raw()
	}

	authMW := middleware.Auth()
	rateLimitMW := middleware.RateLimitGenerate(rdb)

	bibleSvc := bible.NewService(a.db)
	promptSvc := prompt.NewService(a.db)

	aiClient := ai.NewClient(a.cfg.Magisterium, a.logger)
	aiCache := ai.NewCache(a.db, a.logger)
	aiSvc := ai.NewService(a.cfg.Magisterium, bibleSvc, promptSvc, aiClient, aiCache, a.logger)

	api := a.router.Group("/api")

	auth.NewHandler(a.cfg.Admin).RegisterRoutes(api)
	bible.NewHandler(bibleSvc).RegisterRoutes(api)

	promptHandler := prompt.NewHandler(promptSvc)
	promptHandler.RegisterRoutes(api)
	promptHandler.RegisterAdminRoutes(api, authMW)

	aiHandler := ai.NewHandler(aiSvc, aiCache, a.logger)
	aiHandler.RegisterRoutes(api, rateLimitMW)
	aiHandler.RegisterAdminRoutes(api, authMW)
}
