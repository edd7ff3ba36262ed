package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-library-views/internal/handler"
	"github.com/noah-isme/sma-library-views/internal/middleware"
	"github.com/noah-isme/sma-library-views/internal/models"
	"github.com/noah-isme/sma-library-views/internal/service"
	"github.com/noah-isme/sma-library-views/pkg/config"
	"github.com/noah-isme/sma-library-views/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-library-views/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-library-views/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens  *service.TokenService
	metrics *service.MetricsService
	views   *handler.ViewHandler
	ops     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens), middleware.WithResponseMeta())

	api.GET("/views", deps.views.List)
	v := api.Group("/views/:view")
	{
		v.GET("", deps.views.Get)
		v.POST("/refresh", deps.views.Refresh)
		v.PUT("/search", deps.views.SetSearch)
		v.PUT("/pending/field", deps.views.SetPendingField)
		v.PUT("/pending/date-from", deps.views.SetPendingDateFrom)
		v.PUT("/pending/date-to", deps.views.SetPendingDateTo)
		v.PUT("/pending/academic-year", deps.views.SetPendingAcademicYear)
		v.POST("/apply", deps.views.Apply)
		v.POST("/reset", deps.views.Reset)
		v.POST("/sort", deps.views.Sort)
		v.PUT("/page", deps.views.SetPage)
		v.PUT("/page-size", deps.views.SetPageSize)
		v.GET("/export", middleware.RequireRoles(models.RoleLibrarian, models.RoleTeacher), deps.views.Export)
	}

	return r
}
