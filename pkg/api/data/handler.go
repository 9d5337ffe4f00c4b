// Package data provides the HTTP endpoints for dataset upload, import/export,
// question answering, and the sales leaderboard.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"cubitai/pkg/core/agent"
	"cubitai/pkg/core/auth"
	"cubitai/pkg/core/dataset"
	"cubitai/pkg/core/query"
	"cubitai/pkg/core/ranking"
	"cubitai/pkg/core/sheets"
	"cubitai/pkg/core/store"
	"cubitai/pkg/core/utils"
	"cubitai/pkg/core/webimport"
)

// DatasetStore is the per-user dataset persistence seam.
type DatasetStore interface {
	Save(ctx context.Context, userID string, ds *dataset.Dataset) (string, error)
	Load(ctx context.Context, userID string) (*dataset.Dataset, error)
}

// Handler holds dependencies for the data endpoints.
type Handler struct {
	Repo     DatasetStore
	Verifier auth.Verifier
	AgentMgr *agent.Manager
	Engine   *query.Engine
}

// NewHandler wires the data endpoints to their collaborators. The query
// engine's fallback goes through the agent manager's "fallback" agent.
func NewHandler(repo DatasetStore, verifier auth.Verifier, mgr *agent.Manager) *Handler {
	return &Handler{
		Repo:     repo,
		Verifier: verifier,
		AgentMgr: mgr,
		Engine:   query.NewEngine(managerCompleter{mgr: mgr, agentType: "fallback"}),
	}
}

// managerCompleter adapts agent.Manager to the query.Completer seam.
type managerCompleter struct {
	mgr       *agent.Manager
	agentType string
}

func (c managerCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.mgr.ExecutePrompt(ctx, c.agentType, userPrompt, systemPrompt, nil)
}

// Request bodies

type GoogleSheetRequest struct {
	SheetID string `json:"sheet_id"`
}

type WebImportRequest struct {
	URL string `json:"url"`
}

type AskQuestionRequest struct {
	Question string `json:"question"`
}

// cors sets the shared CORS headers and handles the OPTIONS preflight.
// Returns false when the request is already answered.
func cors(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return false
	}
	return true
}

// authenticate verifies the bearer token; writes a 401 and returns nil on
// failure.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) *auth.User {
	user, err := auth.FromRequest(r, h.Verifier)
	if err != nil {
		log.Printf("[Auth] rejected request: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil
	}
	return user
}

// HandleUploadCSV handles POST /api/data/upload_csv (multipart field "file").
func (h *Handler) HandleUploadCSV(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "POST") {
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ds, err := dataset.FromCSV(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid CSV format: %v", err), http.StatusBadRequest)
		return
	}

	uploadID, err := h.Repo.Save(r.Context(), user.UID, ds)
	if err != nil {
		http.Error(w, "Failed to store dataset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"detail":    "CSV uploaded successfully",
		"records":   len(ds.Records),
		"upload_id": uploadID,
	})
}

// HandleImportGoogle handles POST /api/data/import_google.
func (h *Handler) HandleImportGoogle(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "POST") {
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	var req GoogleSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SheetID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client, err := sheets.NewClient(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch Google Sheet", http.StatusBadRequest)
		return
	}
	ds, err := client.Import(r.Context(), req.SheetID)
	if err != nil {
		log.Printf("[Sheets] import failed: %v", err)
		http.Error(w, "Failed to fetch Google Sheet", http.StatusBadRequest)
		return
	}

	uploadID, err := h.Repo.Save(r.Context(), user.UID, ds)
	if err != nil {
		http.Error(w, "Failed to store dataset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"detail":    "Google Sheet imported",
		"records":   len(ds.Records),
		"upload_id": uploadID,
	})
}

// HandleImportWeb handles POST /api/data/import_web: first HTML table on a
// page becomes the user's dataset.
func (h *Handler) HandleImportWeb(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "POST") {
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	var req WebImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ds, err := webimport.FromURL(r.Context(), req.URL)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to import table: %v", err), http.StatusBadRequest)
		return
	}

	uploadID, err := h.Repo.Save(r.Context(), user.UID, ds)
	if err != nil {
		http.Error(w, "Failed to store dataset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"detail":    "Web table imported",
		"records":   len(ds.Records),
		"upload_id": uploadID,
	})
}

// loadDataset fetches the user's dataset, mapping "not found" to nil.
func (h *Handler) loadDataset(ctx context.Context, uid string) (*dataset.Dataset, error) {
	ds, err := h.Repo.Load(ctx, uid)
	if err == store.ErrNotFound {
		return nil, nil
	}
	return ds, err
}

// HandleFetch handles GET /api/data/fetch.
func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "GET") {
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	ds, err := h.loadDataset(r.Context(), user.UID)
	if err != nil {
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if ds == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{"columns": []string{}, "data": []dataset.Record{}})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"columns": ds.Columns, "data": ds.Records})
}

// HandleSummary handles GET /api/data/summary: a whole-dataset generative
// summary via the "summary" agent.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "GET") {
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	ds, err := h.loadDataset(r.Context(), user.UID)
	if err != nil {
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}
	if ds.IsEmpty() {
		http.Error(w, "No data to summarize", http.StatusNotFound)
		return
	}

	lines := make([]string, 0, len(ds.Records))
	for _, rec := range ds.Records {
		lines = append(lines, ds.StringifyRecord(rec))
	}
	prompt := "Summarize this dataset:\n" + strings.Join(lines, "\n")

	summary, err := h.AgentMgr.ExecutePrompt(r.Context(), "summary", prompt, "You are a helpful data analyst.", nil)
	if err != nil {
		log.Printf("[Summary] generation failed: %v", err)
		http.Error(w, "Summary generation failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"summary": utils.CleanMarkdown(summary)})
}

// HandleAsk handles POST /api/data/ask, the question-answering cascade.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "POST") {
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	var req AskQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ds, err := h.loadDataset(r.Context(), user.UID)
	if err != nil {
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}
	if ds.IsEmpty() {
		http.Error(w, "No data available to query", http.StatusNotFound)
		return
	}

	answer, err := h.Engine.Answer(r.Context(), req.Question, ds)
	if err != nil {
		// The deterministic rules cannot fail like this; only the
		// generative fallback can, and its outage is reported as such.
		log.Printf("[Ask] fallback unavailable: %v", err)
		http.Error(w, "The AI assistant is currently unavailable. Deterministic questions still work.", http.StatusBadGateway)
		return
	}

	resp := query.Response{Answer: answer}
	if strings.HasPrefix(answer, query.AIPrefix) {
		resp.AnswerHTML = utils.RenderMarkdown(strings.TrimPrefix(answer, query.AIPrefix))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// TopRepsResponse is the envelope for the leaderboard endpoint.
type TopRepsResponse struct {
	TopSalesReps []ranking.Entry `json:"top_sales_reps"`
	Note         string          `json:"note,omitempty"`
}

// HandleTopSalesReps handles GET /api/data/top_sales_reps?top_n=5.
func (h *Handler) HandleTopSalesReps(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "GET") {
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	ds, err := h.loadDataset(r.Context(), user.UID)
	if err != nil {
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}
	if ds.IsEmpty() {
		http.Error(w, "No data found", http.StatusNotFound)
		return
	}

	topN := ranking.DefaultTopN
	if v := r.URL.Query().Get("top_n"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topN = n
		}
	}

	w.Header().Set("Content-Type", "application/json")

	sample := ds.Records
	if len(sample) > 20 {
		sample = sample[:20]
	}
	if !ranking.LooksLikeSalesData(sample) {
		json.NewEncoder(w).Encode(TopRepsResponse{
			TopSalesReps: []ranking.Entry{},
			Note:         "Your dataset doesn't appear to contain sales rep and deal value columns, so a leaderboard can't be computed.",
		})
		return
	}

	json.NewEncoder(w).Encode(TopRepsResponse{
		TopSalesReps: ranking.TopSalesReps(ds.Records, topN),
	})
}

// HandleExportCSV handles GET /api/data/export_csv.
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "GET") {
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	ds, err := h.loadDataset(r.Context(), user.UID)
	if err != nil {
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}
	if ds.IsEmpty() {
		http.Error(w, "No data to export", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=data_export.csv")
	if err := ds.ToCSV(w); err != nil {
		log.Printf("[Export] CSV write failed: %v", err)
	}
}

// HandleExportGoogle handles GET /api/data/export_google.
func (h *Handler) HandleExportGoogle(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "GET") {
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	ds, err := h.loadDataset(r.Context(), user.UID)
	if err != nil {
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}
	if ds.IsEmpty() {
		http.Error(w, "No data to export", http.StatusNotFound)
		return
	}

	client, err := sheets.NewClient(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to export to Google Sheets: %v", err), http.StatusInternalServerError)
		return
	}

	title := fmt.Sprintf("CubitAI Export - %s", user.Email)
	sheetID, err := client.Export(r.Context(), title, ds)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to export to Google Sheets: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"detail":         fmt.Sprintf("Data exported. Check Google Sheets (%s).", user.Email),
		"spreadsheet_id": sheetID,
	})
}

// SuggestResponse carries LLM-proposed example questions for the dataset.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// HandleSuggest handles POST /api/data/suggest: asks the model for example
// questions the cascade can answer about the current dataset. Model output is
// parsed leniently since it rarely returns clean JSON.
func (h *Handler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "POST") {
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	ds, err := h.loadDataset(r.Context(), user.UID)
	if err != nil {
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}
	if ds.IsEmpty() {
		http.Error(w, "No data found", http.StatusNotFound)
		return
	}

	prompt := fmt.Sprintf(
		"A user has a dataset with these columns: %s.\n"+
			"Propose 5 short example questions they could ask about it, such as totals, averages, unique value listings, or counts per year.\n"+
			"Respond with a JSON array of strings only.",
		strings.Join(ds.Columns, ", "))

	raw, err := h.AgentMgr.ExecutePrompt(r.Context(), "suggest", prompt, "You are a data assistant.", nil)
	if err != nil {
		log.Printf("[Suggest] generation failed: %v", err)
		http.Error(w, "Suggestion generation failed", http.StatusBadGateway)
		return
	}

	var suggestions []string
	if _, err := utils.SmartParse(raw, &suggestions); err != nil {
		log.Printf("[Suggest] could not parse model output: %v", err)
		suggestions = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SuggestResponse{Suggestions: suggestions})
}
