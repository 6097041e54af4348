package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"tableside/internal/catalog"
	"tableside/internal/checkout"
	"tableside/internal/client"
	"tableside/internal/config"
	"tableside/internal/logging"
	"tableside/internal/monitoring"
	"tableside/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	apiURL      = flag.String("api", "", "Backend base URL (overrides config)")
	metricsAddr = flag.String("metrics-addr", "", "Serve approval metrics on this address, e.g. :9091")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "tableside-cli.log"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	methods, err := cfg.Payments.Methods()
	if err != nil {
		fmt.Printf("Error in payment configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitoring.NewMetrics()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, metrics, logger)
	}

	api := client.NewFromConfig(cfg.API, logger)
	approver := checkout.NewApprover(api,
		checkout.WithAtomicApproval(cfg.Checkout.AtomicApproval),
		checkout.WithObserver(metrics),
		checkout.WithLogger(logger),
	)

	m := initialModel(ctx, deps{
		client:      api,
		catalog:     catalog.New(api, logger),
		session:     session.New(api, approver, cfg.Checkout.UserID, logger),
		methods:     methods,
		receiptsDir: cfg.Checkout.ReceiptsDir,
		maxAge:      cfg.Catalog.MaxAge,
		timeout:     cfg.API.Timeout,
		logger:      logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())

	// The event stream is optional: without it the catalog still refreshes
	// when it goes stale.
	if err := watchEvents(ctx, m, p.Send); err != nil {
		logger.Warn("Event stream unavailable", zap.Error(err))
	}

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}

func serveMetrics(addr string, metrics *monitoring.Metrics, logger *zap.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Starting metrics server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, router); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
