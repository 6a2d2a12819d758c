package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "taskmaster/app/configs"
	"taskmaster/app/core/assistant"
	"taskmaster/app/core/interaction/cli"
	"taskmaster/app/core/interaction/http"
	"taskmaster/app/core/llm"
	"taskmaster/app/core/maintenance"
	"taskmaster/app/core/orchestrator/db"
	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
	"taskmaster/app/pkg/logger"
)

func main() {
	if err := logger.Init("output/logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("Taskmaster starting...")

	cfgManager, err := config.NewManager(config.DefaultPath())
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	database, err := db.NewSQLiteDB("output/db")
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized successfully")

	taskStore := task.NewStore(database)
	userStore := user.NewStore(database)

	llmClient := llm.NewClient(cfg.Ollama)
	service := assistant.NewService(taskStore, userStore, llmClient, cfg.Assistant)

	server := http.NewServer(cfg.Server.Port, service, taskStore, userStore, llmClient)
	server.SetShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := maintenance.NewSweeper()
	if err := sweeper.Add(maintenance.OverdueSweep(taskStore)); err != nil {
		logger.Error("Failed to register overdue sweep: %v", err)
		os.Exit(1)
	}
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start maintenance sweeper: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := sweeper.Stop(3 * time.Second); err != nil {
			logger.Error("Maintenance sweeper shutdown timeout: %v", err)
		}
	}()

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("HTTP server crashed: %v", err)
			os.Exit(1)
		}
	}()

	go func() {
		repl := cli.NewREPL(service, 1)
		if err := repl.Run(ctx); err != nil {
			logger.Error("CLI stopped: %v", err)
		}
	}()

	logger.Info("Taskmaster is ready to serve.")
	fmt.Println("- CLI Interface:  Interactive")
	fmt.Printf("- Chat API:       http://localhost:%d/api/ai/chat (POST)\n", cfg.Server.Port)
	fmt.Printf("- Task API:       http://localhost:%d/api/tasks\n", cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. Taskmaster shutting down...", sig)
	cancel()
}
