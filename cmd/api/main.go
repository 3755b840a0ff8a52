package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"finagle/pkg/api/valuation"
	"finagle/pkg/core/config"
	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/store"

	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		fmt.Printf("[WARNING] %v\n", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("[FATAL] Logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	orch := pipeline.NewPipelineOrchestrator(logger)
	records := store.NewRecordCache(nil, "")
	var runs valuation.RunLoader

	// Persistence is optional: without DATABASE_URL records use the file cache
	// and runs are not stored.
	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("[STORE] Database disabled: %v\n", err)
	} else if err := store.Migrate(ctx, store.GetPool()); err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	} else {
		defer store.Close()
		repo := store.NewRunRepo(store.GetPool())
		orch.SetRepository(repo)
		records = store.NewRecordCache(store.GetPool(), "")
		runs = repo
		fmt.Println("[STORE] Connected to DATABASE_URL")
	}

	mux := http.NewServeMux()
	valuation.NewHandler(orch, records, runs).Register(mux)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	fmt.Printf("API server starting on %s...\n", addr)
	fmt.Println("  - POST /api/valuation/run")
	fmt.Println("  - GET  /api/valuation/runs?id=<run id>")

	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
