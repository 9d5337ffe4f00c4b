package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	apiconfig "cubitai/pkg/api/config"
	"cubitai/pkg/api/data"
	"cubitai/pkg/core/agent"
	"cubitai/pkg/core/auth"
	"cubitai/pkg/core/store"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize agent manager from config
	configData, err := os.ReadFile("config/models.yaml")
	if err != nil {
		fmt.Printf("[WARNING] Failed to read config/models.yaml: %v\n", err)
		fmt.Println("  Falling back to default provider configuration")
	}
	agentCfg, err := agent.LoadConfig(configData)
	if err != nil {
		fmt.Printf("[WARNING] Failed to parse config/models.yaml: %v\n", err)
		fmt.Println("  Falling back to default provider configuration")
	}
	agentMgr := agent.NewManager(agentCfg)
	fmt.Printf("[CONFIG] Active provider: %s\n", agentMgr.GetActiveProvider())

	// Initialize database
	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("[FATAL] Database init failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// Config endpoints
	configHandler := apiconfig.NewHandler(agentMgr)
	http.HandleFunc("/api/config", configHandler.HandleConfig)
	http.HandleFunc("/api/config/switch", configHandler.HandleSwitch)

	// Data endpoints
	dataHandler := data.NewHandler(store.NewDatasetRepo(), &auth.GoogleVerifier{}, agentMgr)
	http.HandleFunc("/api/data/upload_csv", dataHandler.HandleUploadCSV)
	http.HandleFunc("/api/data/import_google", dataHandler.HandleImportGoogle)
	http.HandleFunc("/api/data/import_web", dataHandler.HandleImportWeb)
	http.HandleFunc("/api/data/fetch", dataHandler.HandleFetch)
	http.HandleFunc("/api/data/summary", dataHandler.HandleSummary)
	http.HandleFunc("/api/data/ask", dataHandler.HandleAsk)
	http.HandleFunc("/api/data/top_sales_reps", dataHandler.HandleTopSalesReps)
	http.HandleFunc("/api/data/export_csv", dataHandler.HandleExportCSV)
	http.HandleFunc("/api/data/export_google", dataHandler.HandleExportGoogle)
	http.HandleFunc("/api/data/suggest", dataHandler.HandleSuggest)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message": "Welcome to CubitAI backend!"}`)
	})

	fmt.Println("API server starting on :8080...")
	fmt.Println("  - POST /api/data/upload_csv")
	fmt.Println("  - POST /api/data/import_google")
	fmt.Println("  - POST /api/data/import_web")
	fmt.Println("  - GET  /api/data/fetch")
	fmt.Println("  - GET  /api/data/summary")
	fmt.Println("  - POST /api/data/ask")
	fmt.Println("  - GET  /api/data/top_sales_reps")
	fmt.Println("  - GET  /api/data/export_csv")
	fmt.Println("  - GET  /api/data/export_google")
	fmt.Println("  - POST /api/data/suggest")
	fmt.Println("  - GET  /api/config")
	fmt.Println("  - POST /api/config/switch")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
