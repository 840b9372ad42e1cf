package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerguard/copilot/internal/config"
	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
	"github.com/ledgerguard/copilot/internal/firewall"
	"github.com/ledgerguard/copilot/internal/infrastructure/classify"
)

const (
	ownerHeader  = "X-Owner-Id"
	defaultOwner = "default"

	uploadMaxBytes  = 64 << 20
	sniffHeadSize   = 512
	backpressureMax = 2 * time.Second
)

type Router struct {
	cfg        config.Config
	ingest     ports.DocumentIngestor
	documents  ports.DocumentReader
	search     ports.SearchService
	compliance ports.ComplianceService
	papers     ports.WorkingPaperService
	rules      ports.RuleStore
	audit      ports.AuditStore
	gateway    *firewall.Gateway
	logger     *slog.Logger
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	documents ports.DocumentReader,
	search ports.SearchService,
	compliance ports.ComplianceService,
	papers ports.WorkingPaperService,
	rules ports.RuleStore,
	audit ports.AuditStore,
	gateway *firewall.Gateway,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:        cfg,
		ingest:     ingest,
		documents:  documents,
		search:     search,
		compliance: compliance,
		papers:     papers,
		rules:      rules,
		audit:      audit,
		gateway:    gateway,
		logger:     logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/search", rt.searchDocuments)
	mux.HandleFunc("/v1/evaluate", rt.evaluatePeriod)
	mux.HandleFunc("/v1/reconcile", rt.reconcilePeriod)
	mux.HandleFunc("/v1/papers/", rt.getWorkingPaper)
	mux.HandleFunc("/v1/rules/versions", rt.listRuleVersions)
	mux.HandleFunc("/v1/tools", rt.listTools)
	mux.HandleFunc("/v1/tools/", rt.callTool)
	mux.HandleFunc("/v1/audit", rt.recentAudit)

	handler := http.Handler(mux)
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureMax)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, uploadMaxBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	// Sniff the effective MIME type from leading bytes; the declared
	// Content-Type is a hint, not a fact.
	head := make([]byte, sniffHeadSize)
	n, readErr := io.ReadFull(file, head)
	if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
		writeError(w, readErr)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, err)
		return
	}
	mimeType := classify.SniffMIME(fileHeader.Filename, head[:n], fileHeader.Header.Get("Content-Type"))

	doc, err := rt.ingest.Upload(r.Context(), ownerFromRequest(r), fileHeader.Filename, mimeType, declaredClassification(r), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// declaredClassification picks up optional caller-provided labels from the
// upload form. Declared labels short-circuit the classifier downstream.
func declaredClassification(r *http.Request) *domain.Classification {
	docType := strings.TrimSpace(r.FormValue("doc_type"))
	category := strings.TrimSpace(r.FormValue("category"))
	subcategory := strings.TrimSpace(r.FormValue("subcategory"))
	period := strings.TrimSpace(r.FormValue("period"))
	if docType == "" && category == "" && subcategory == "" && period == "" {
		return nil
	}
	return &domain.Classification{
		Type:        domain.DocumentType(docType),
		Category:    category,
		Subcategory: subcategory,
		Period:      period,
	}
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, reprocess := rest, false
	if strings.HasSuffix(rest, "/reprocess") {
		id, reprocess = strings.TrimSuffix(rest, "/reprocess"), true
	}
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	if reprocess {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		doc, err := rt.ingest.Reprocess(r.Context(), ownerFromRequest(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, doc)
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Query    string `json:"query"`
		Limit    int    `json:"limit"`
		DocType  string `json:"doc_type"`
		Category string `json:"category"`
		Period   string `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	chunks, err := rt.search.Search(r.Context(), req.Query, req.Limit, domain.SearchFilter{
		OwnerID:  ownerFromRequest(r),
		Type:     domain.DocumentType(req.DocType),
		Category: req.Category,
		Period:   req.Period,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(chunks), "results": chunks})
}

func (rt *Router) evaluatePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Period   string `json:"period"`
		Snapshot bool   `json:"snapshot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	owner := ownerFromRequest(r)
	batch, err := rt.compliance.EvaluatePeriod(r.Context(), owner, req.Period)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"evaluation": batch}
	if req.Snapshot {
		paper, err := rt.papers.SnapshotEvaluation(r.Context(), owner, req.Period, batch)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["paper_id"] = paper.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) reconcilePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Period   string `json:"period"`
		Snapshot bool   `json:"snapshot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	owner := ownerFromRequest(r)
	report, err := rt.compliance.ReconcilePeriod(r.Context(), owner, req.Period)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"reconciliation": report}
	if req.Snapshot {
		paper, err := rt.papers.SnapshotReconciliation(r.Context(), owner, report)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["paper_id"] = paper.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) getWorkingPaper(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/papers/")
	id, export := rest, false
	if strings.HasSuffix(rest, "/export") {
		id, export = strings.TrimSuffix(rest, "/export"), true
	}
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paper id is required"})
		return
	}

	if export {
		raw, err := rt.papers.ExportXLSX(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="working-paper-`+id+`.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}

	paper, err := rt.papers.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (rt *Router) listRuleVersions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	versions, err := rt.rules.ListVersions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (rt *Router) listTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	type toolInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	tools := rt.gateway.Tools()
	out := make([]toolInfo, 0, len(tools))
	for _, tool := range tools {
		out = append(out, toolInfo{Name: tool.Name, Description: tool.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (rt *Router) callTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/tools/")
	if name == "" || strings.Contains(name, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tool name is required"})
		return
	}

	params := map[string]any{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	payload, err := rt.gateway.Call(r.Context(), requestIDFromContext(r.Context()), ownerFromRequest(r), name, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool": name, "result": payload})
}

func (rt *Router) recentAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := rt.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func ownerFromRequest(r *http.Request) string {
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		return defaultOwner
	}
	return owner
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
