package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/zigman/pkg/api"
	"github.com/urmzd/zigman/pkg/automation"
	"github.com/urmzd/zigman/pkg/config"
	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/fastpath"
	"github.com/urmzd/zigman/pkg/gateway"
	"github.com/urmzd/zigman/pkg/handlers"
	"github.com/urmzd/zigman/pkg/matter"
	"github.com/urmzd/zigman/pkg/mqtt"
	"github.com/urmzd/zigman/pkg/spectrum"
	"github.com/urmzd/zigman/pkg/touchlink"
	"github.com/urmzd/zigman/pkg/zigbee"
	"github.com/urmzd/zigman/pkg/zones"

	_ "github.com/urmzd/zigman/docs"
)

// @title           Zigman API
// @version         1.0
// @description     REST API of the Zigman Zigbee/Matter gateway

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml, ./config/config.yaml, /etc/zigman/config.yaml)")
	serialPort := flag.String("port", "", "Zigbee serial port, overrides the config value")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}

	// Generate missing network credentials and persist them
	if generated := cfg.EnsureNetworkCredentials(); len(generated) > 0 {
		log.Info().Strs("fields", generated).Msg("Generated network credentials")
		if err := cfg.Save(); err != nil {
			log.Fatal().Err(err).Str("path", cfg.Path()).Msg("Failed to save generated credentials")
		}
	}

	log.Info().
		Str("config", cfg.Path()).
		Str("serial_port", cfg.Serial.Port).
		Str("mqtt_broker", cfg.MQTT.Broker).
		Str("api_address", cfg.API.Address()).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database
	database, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Connect the coordinator; fall back to the null radio so the gateway
	// still serves cached devices and the API
	var radio device.Radio
	var controller *zigbee.Controller
	if cfg.Serial.Port == "" {
		log.Warn().Msg("No serial port configured, using null radio")
		radio = device.NewNullRadio()
	} else {
		controller, err = zigbee.NewController(zigbee.Options{
			Port: cfg.Serial.Port,
			Baud: cfg.Serial.Baud,
			Network: zigbee.NetworkOptions{
				Channel:       uint8(cfg.Zigbee.Channel),
				PANID:         cfg.PANIDValue(),
				ExtendedPANID: cfg.ExtendedPANIDBytes(),
				NetworkKey:    cfg.NetworkKeyBytes(),
			},
		})
		if err != nil {
			log.Warn().Err(err).Str("port", cfg.Serial.Port).Msg("Zigbee coordinator unavailable, using null radio")
			radio = device.NewNullRadio()
		} else {
			radio = controller
			defer controller.Close()
		}
	}

	// Device engine and its collaborators
	events := device.NewBroker()
	stats := device.NewStatsTracker()
	engine := device.NewEngine(radio, handlers.NewRegistry(), stats, events, log.Logger)

	// MQTT: a failed connect is not fatal, the gateway keeps serving the
	// API and counts the dropped publishes
	mqttSvc := mqtt.NewService(mqtt.Options{
		Broker:    cfg.MQTT.Broker,
		BaseTopic: cfg.MQTT.BaseTopic,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
	}, log.Logger)
	if err := mqttSvc.Connect(); err != nil {
		log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT unavailable, continuing without broker")
	}
	defer mqttSvc.Close()
	engine.SetPublisher(mqttSvc)

	// Matter bridge (optional)
	var bridge *matter.Bridge
	if cfg.Matter.ServerURL != "" {
		bridge = matter.NewBridge(cfg.Matter.ServerURL, mqttSvc, events, filepath.Join(cfg.DataDir, "matter_names.json"), log.Logger)
	}

	// Unified directory over both protocol stacks
	var directory *gateway.Directory
	if bridge != nil {
		directory = gateway.NewDirectory(engine, bridge)
	} else {
		directory = gateway.NewDirectory(engine, nil)
	}
	mqttSvc.SetCommandRouter(directory)

	// Presence zones
	zonesManager := zones.NewManager(directory, radio, cfg.MQTT.BaseTopic, log.Logger)
	zonesManager.SetPublisher(mqttSvc)
	intake := zones.NewIntake(zonesManager, log.Logger)

	// Fast path decoder
	decoder := fastpath.NewDecoder(engine, log.Logger)
	decoder.SetPublisher(mqttSvc)

	// Automation rules
	rules := automation.NewEngine(filepath.Join(cfg.DataDir, "automations.json"), directory, events, log.Logger)
	engine.SetDeltaConsumer(rules)

	// Gateway: packet intake, joins/leaves, cache persistence
	gw := gateway.New(engine, decoder, intake, database.Cache(), database.Names(), mqttSvc, log.Logger)
	if controller != nil {
		controller.SetEventHandler(gw)
	}
	if err := gw.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to restore device cache")
	}

	// Spectrum monitor
	spectrumMonitor := spectrum.NewMonitor(radio, database.Spectrum(), time.Duration(cfg.Spectrum.IntervalSeconds)*time.Second, log.Logger)

	// Touchlink needs the coordinator's InterPAN mode; the EZSP backend
	// does not expose one, so the session reports unsupported
	touchlinkSession := touchlink.NewSession(nil, log.Logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(gateway.NewCollector(engine, gw, decoder, rules, mqttSvc))

	// Background loops
	go gw.Run(ctx)
	go gw.RunCacheFlush(ctx)
	go engine.RunAvailabilityLoop(ctx)
	go zonesManager.Run(ctx)
	go spectrumMonitor.Run(ctx)
	if bridge != nil {
		go bridge.Run(ctx)
	}

	// Create the API router
	router := api.NewRouter(api.Deps{
		Engine:     engine,
		Directory:  directory,
		Gateway:    gw,
		Bridge:     bridge,
		Rules:      rules,
		Zones:      zonesManager,
		Intake:     intake,
		Touchlink:  touchlinkSession,
		Spectrum:   spectrumMonitor,
		SpectrumDB: database.Spectrum(),
		Decoder:    decoder,
		Events:     events,
		MQTT:       mqttSvc,
		Metrics:    registry,
	}, log.Logger)

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		cancel()
		mqttSvc.Close()
		if controller != nil {
			controller.Close()
		}
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		os.Exit(0)
	}()

	// Start server
	addr := cfg.API.Address()
	log.Info().Str("address", addr).Msg("Starting API server")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
