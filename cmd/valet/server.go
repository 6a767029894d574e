package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jheinecke/valet/internal/api"
	"github.com/jheinecke/valet/internal/config"
	"github.com/jheinecke/valet/internal/knowledge"
	"github.com/jheinecke/valet/internal/learning"
	"github.com/jheinecke/valet/internal/llm"
	"github.com/jheinecke/valet/internal/orchestrator"
	"github.com/jheinecke/valet/internal/storage"
	"github.com/jheinecke/valet/internal/tools"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopServer()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tool registry over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context())
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	dataDir, err := resolveDataDir(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	pidPath := filepath.Join(dataDir, "valet.pid")
	if err := checkNotRunning(pidPath, cfg.Server.Port); err != nil {
		return err
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	var index *knowledge.Index
	if cfg.Knowledge.Enabled {
		embed := knowledge.OllamaEmbedding(cfg.Knowledge.EmbedBaseURL, cfg.Knowledge.EmbedModel)
		index, err = knowledge.Open(filepath.Join(dataDir, "knowledge"), embed)
		if err != nil {
			return fmt.Errorf("open knowledge index: %w", err)
		}
	}

	primary, err := llm.NewProvider(cfg.Primary.Kind, cfg.Primary.BaseURL, cfg.Primary.Model, cfg.Primary.APIKey)
	if err != nil {
		return fmt.Errorf("primary provider: %w", err)
	}
	fallback, err := llm.NewProvider(cfg.Fallback.Kind, cfg.Fallback.BaseURL, cfg.Fallback.Model, cfg.Fallback.APIKey)
	if err != nil {
		return fmt.Errorf("fallback provider: %w", err)
	}
	router := llm.NewRouter(primary, fallback, cfg.RouterTimeout())
	if !primary.CredentialConfigured() {
		slog.Warn("primary provider has no credential configured, requests will fall back",
			"provider", primary.Kind())
	}

	registry := buildRegistry(store, index, cfg)
	assembler := learning.NewAssembler(store)

	orch := orchestrator.New(assembler, router, registry, orchestrator.Config{
		SystemPrompt: loadPrompt(cfg.Prompts.SystemPromptPath, orchestrator.DefaultSystemPrompt),
		Persona:      loadPrompt(cfg.Prompts.PersonaPromptPath, ""),
		ContextLimit: cfg.Learning.ContextLimit,
	})

	handler := api.NewHandler(api.Deps{
		Store:        store,
		Learning:     assembler,
		Orchestrator: orch,
		Router:       router,
		Registry:     registry,
		Index:        index,
		Token:        cfg.Server.APIToken,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	dataDir, err := resolveDataDir(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	store, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	var index *knowledge.Index
	if cfg.Knowledge.Enabled {
		embed := knowledge.OllamaEmbedding(cfg.Knowledge.EmbedBaseURL, cfg.Knowledge.EmbedModel)
		index, err = knowledge.Open(filepath.Join(dataDir, "knowledge"), embed)
		if err != nil {
			return fmt.Errorf("open knowledge index: %w", err)
		}
	}

	registry := buildRegistry(store, index, cfg)
	return api.ServeMCPStdio(ctx, api.NewMCPServer(registry, store, version))
}

func buildRegistry(store *storage.Store, index *knowledge.Index, cfg config.Config) *tools.Registry {
	registry := tools.NewRegistry(
		tools.NewGetFact(store),
		tools.NewSetFact(store),
	)
	if index != nil {
		registry.Register(tools.NewSearchDocs(index))
	}
	if cfg.SmartHome.BaseURL != "" {
		client := tools.NewSmartHomeClient(cfg.SmartHome.BaseURL)
		registry.Register(tools.NewListDevices(client))
		registry.Register(tools.NewTurnOn(client))
		registry.Register(tools.NewTurnOff(client))
		registry.Register(tools.NewGetStatus(client))
	}
	return registry
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func resolveDataDir(configured string) (string, error) {
	dir := configured
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".local", "share", "valet")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}

func loadPrompt(path, fallback string) string {
	if path == "" {
		return fallback
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("prompt file unreadable, using default", "path", path, "error", err)
		return fallback
	}
	return strings.TrimSpace(string(data))
}

// checkNotRunning refuses to start when a live daemon already answers on the
// configured port. A stale pid file is removed.
func checkNotRunning(pidPath string, port int) error {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		os.Remove(pidPath)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return fmt.Errorf("daemon already running (pid %d)", pid)
		}
	}
	os.Remove(pidPath)
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dataDir, err := resolveDataDir(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	pidPath := filepath.Join(dataDir, "valet.pid")

	data, err := os.ReadFile(pidPath)
	if err != nil {
		return errors.New("daemon is not running")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		os.Remove(pidPath)
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(pidPath)
		return errors.New("daemon is not running")
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		os.Remove(pidPath)
		return errors.New("daemon is not running")
	}

	printSuccess("sent SIGTERM to pid %d", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port))
	if err != nil {
		printWarning("daemon is not running on port %d", cfg.Server.Port)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		printWarning("daemon answered with status %d", resp.StatusCode)
		return nil
	}
	printSuccess("daemon is running on port %d", cfg.Server.Port)
	return nil
}
