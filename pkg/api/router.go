// Package api exposes the gateway over HTTP: device listing and control,
// discovery, automations, presence zones, touchlink, spectrum data and an
// SSE event stream, with Swagger docs under /swagger.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/urmzd/zigman/pkg/api/handlers"
	"github.com/urmzd/zigman/pkg/automation"
	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/fastpath"
	"github.com/urmzd/zigman/pkg/gateway"
	"github.com/urmzd/zigman/pkg/matter"
	"github.com/urmzd/zigman/pkg/mqtt"
	"github.com/urmzd/zigman/pkg/spectrum"
	"github.com/urmzd/zigman/pkg/touchlink"
	"github.com/urmzd/zigman/pkg/zones"
)

// Deps carries everything the API serves. Bridge, MQTT and Metrics may be
// nil; the matching routes then report "disabled" or are not registered.
type Deps struct {
	Engine     *device.Engine
	Directory  *gateway.Directory
	Gateway    *gateway.Gateway
	Bridge     *matter.Bridge
	Rules      *automation.Engine
	Zones      *zones.Manager
	Intake     *zones.Intake
	Touchlink  *touchlink.Session
	Spectrum   *spectrum.Monitor
	SpectrumDB db.SpectrumStore
	Decoder    *fastpath.Decoder
	Events     *device.Broker
	MQTT       *mqtt.Service
	Metrics    prometheus.Gatherer
}

// Router holds the Gin engine and dependencies
type Router struct {
	engine *gin.Engine
	deps   Deps
	log    zerolog.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps, log zerolog.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	logger := log.With().Str("component", "api").Logger()
	SetupMiddleware(engine, logger)

	router := &Router{
		engine: engine,
		deps:   deps,
		log:    logger,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(301, "/swagger/index.html")
	})

	// Prometheus scrape endpoint
	if r.deps.Metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Metrics, promhttp.HandlerOpts{})))
	}

	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.deps.Engine, r.deps.Gateway, r.deps.MQTT, r.deps.Bridge)
	r.engine.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		// Health
		v1.GET("/health", healthHandler.Health)

		// Event stream
		eventsHandler := handlers.NewEventsHandler(r.deps.Events)
		v1.GET("/events", eventsHandler.Events)

		// Discovery
		discoveryHandler := handlers.NewDiscoveryHandler(r.deps.Gateway)
		discovery := v1.Group("/discovery")
		{
			discovery.POST("/start", discoveryHandler.StartDiscovery)
			discovery.POST("/stop", discoveryHandler.StopDiscovery)
		}

		// Devices
		devicesHandler := handlers.NewDevicesHandler(r.deps.Directory, r.deps.Engine, r.deps.Gateway, r.deps.Bridge)
		controlHandler := handlers.NewControlHandler(r.deps.Directory)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.GET("/:id", devicesHandler.GetDevice)
			devices.PATCH("/:id", devicesHandler.RenameDevice)
			devices.DELETE("/:id", devicesHandler.RemoveDevice)

			// Device state control
			devices.GET("/:id/state", controlHandler.GetState)
			devices.POST("/:id/state", controlHandler.SetState)
		}

		// Automations
		automationsHandler := handlers.NewAutomationsHandler(r.deps.Rules, r.deps.Directory)
		automations := v1.Group("/automations")
		{
			automations.GET("", automationsHandler.ListRules)
			automations.POST("", automationsHandler.CreateRule)
			automations.GET("/stats", automationsHandler.Stats)
			automations.GET("/trace", automationsHandler.Trace)
			automations.GET("/actuators", automationsHandler.Actuators)
			automations.GET("/rule/:id", automationsHandler.GetRule)
			automations.PUT("/:id", automationsHandler.UpdateRule)
			automations.DELETE("/:id", automationsHandler.DeleteRule)
			automations.PATCH("/:id/toggle", automationsHandler.ToggleRule)
			automations.GET("/device/:ieee/attributes", automationsHandler.SourceAttributes)
			automations.GET("/device/:ieee/actions", automationsHandler.TargetCommands)
		}

		// Presence zones
		zonesHandler := handlers.NewZonesHandler(r.deps.Zones, r.deps.Intake)
		zonesGroup := v1.Group("/zones")
		{
			zonesGroup.GET("", zonesHandler.ListZones)
			zonesGroup.POST("", zonesHandler.CreateZone)
			zonesGroup.GET("/links", zonesHandler.Links)
			zonesGroup.GET("/suggestions", zonesHandler.Suggestions)
			zonesGroup.GET("/:name", zonesHandler.GetZone)
			zonesGroup.PUT("/:name", zonesHandler.UpdateZone)
			zonesGroup.DELETE("/:name", zonesHandler.DeleteZone)
			zonesGroup.POST("/:name/recalibrate", zonesHandler.Recalibrate)
			zonesGroup.POST("/:name/devices", zonesHandler.ModifyDevices)
		}

		// Touchlink commissioning
		touchlinkHandler := handlers.NewTouchlinkHandler(r.deps.Touchlink)
		touchlinkGroup := v1.Group("/touchlink")
		{
			touchlinkGroup.POST("/scan", touchlinkHandler.Scan)
			touchlinkGroup.POST("/identify", touchlinkHandler.Identify)
			touchlinkGroup.POST("/reset", touchlinkHandler.FactoryReset)
		}

		// Spectrum
		spectrumHandler := handlers.NewSpectrumHandler(r.deps.Spectrum, r.deps.SpectrumDB)
		spectrumGroup := v1.Group("/spectrum")
		{
			spectrumGroup.GET("", spectrumHandler.Latest)
			spectrumGroup.GET("/history", spectrumHandler.History)
			spectrumGroup.GET("/channels", spectrumHandler.ChannelAverages)
			spectrumGroup.POST("/scan", spectrumHandler.Scan)
		}

		// Traffic statistics
		statsHandler := handlers.NewStatsHandler(r.deps.Engine, r.deps.Gateway, r.deps.Decoder)
		statsGroup := v1.Group("/stats")
		{
			statsGroup.GET("/packets", statsHandler.Packets)
			statsGroup.GET("/fastpath", statsHandler.Fastpath)
		}
	}
}

// Handler exposes the engine as an http.Handler for embedding in a server.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
