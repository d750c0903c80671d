package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	restful "github.com/emicklei/go-restful/v3"

	"github.com/gitstash/relay/config"
	"github.com/gitstash/relay/internal/common"
	"github.com/gitstash/relay/internal/cron"
	fileApi "github.com/gitstash/relay/internal/file/api"
	fileService "github.com/gitstash/relay/internal/file/service"
	"github.com/gitstash/relay/internal/quota"
	"github.com/gitstash/relay/internal/store"
	"github.com/gitstash/relay/pkg/format"
	"github.com/gitstash/relay/pkg/logger"
)

func main() {
	log := logger.New()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic recovered: %v", r)
			os.Exit(1)
		}
	}()

	// Initialize configuration
	cfg := config.GetInstance()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	log.Info("Relaying files to %s/%s (branch %s)", cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch)
	log.Info("Default retention: %d days", cfg.Cleanup.RetentionDays)

	// Initialize collaborators
	contentStore := store.NewGitHubStore(store.GitHubConfig{
		Owner:  cfg.GitHub.Owner,
		Repo:   cfg.GitHub.Repo,
		Branch: cfg.GitHub.Branch,
		Token:  cfg.GitHub.Token,
	})
	quotaClient := quota.NewClient(cfg.Auth.URL, cfg.Auth.CacheTTL)

	// Initialize services
	fileSvc := fileService.New(contentStore, quotaClient)

	// Initialize cron manager
	cronManager := cron.NewManager(log, fileSvc, cfg.Cleanup.RetentionDays)
	cronManager.Start()
	defer cronManager.Stop()

	// Initialize API handlers
	fileHandler := fileApi.NewFileHandler(fileSvc, cfg.Cleanup.Secret)

	// Create REST API container
	container := restful.NewContainer()

	// Create WebService
	ws := new(restful.WebService)
	ws.Path("/").Produces(restful.MIME_JSON)

	// Register routes
	fileApi.RegisterRoutes(ws, fileHandler)

	container.Add(ws)

	// Log API endpoints
	endpoints := make([]format.APIEndpoint, 0, len(ws.Routes()))
	for _, route := range ws.Routes() {
		endpoints = append(endpoints, format.APIEndpoint{
			Method:      route.Method,
			Path:        route.Path,
			Description: route.Doc,
		})
	}
	format.LogAPIEndpoints(log, endpoints)

	// Add CORS filter
	cors := restful.CrossOriginResourceSharing{
		AllowedHeaders: []string{"Content-Type", "Accept"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedDomains: []string{"*"},
	}
	container.Filter(cors.Filter)

	// Add request logging filter
	container.Filter(func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		// Print request line with query parameters
		url := req.Request.URL.Path
		if req.Request.URL.RawQuery != "" {
			url += "?" + req.Request.URL.RawQuery
		}
		log.Info("%s %s %s", req.Request.Method, url, req.Request.Proto)

		// Print headers in debug mode
		if log.IsDebugEnabled() && len(req.Request.Header) > 0 {
			headers := make([]string, 0, len(req.Request.Header))
			for name, values := range req.Request.Header {
				headers = append(headers, fmt.Sprintf("%s: %s", name, values[0]))
			}
			log.Debug("Headers: %s", strings.Join(headers, ", "))
		}

		// Process the request
		chain.ProcessFilter(req, resp)

		// Log response status
		log.Debug("Response status: %d", resp.StatusCode())
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting server on %s", addr)

	// Get all local IPs
	ips := common.GetLocalIPs()
	log.Info("Accessible URLs:")
	for _, ip := range ips {
		log.Info("  http://%s:%d", ip, cfg.Server.Port)
	}

	// Create a channel to receive OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	server := &http.Server{
		Addr:    addr,
		Handler: container,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited properly")
}
