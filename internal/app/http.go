package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"beacon/api/internal/auditlog"
	"beacon/api/internal/initiative"
	"beacon/api/internal/notify"
	"beacon/api/internal/report"
	"beacon/api/internal/search"
	"beacon/api/internal/support"
	"beacon/api/internal/userstore"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	syncToken  string
}

func NewHTTPServer(service *Service, corsOrigin, syncToken string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, syncToken: syncToken}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

// identityFrom reads the caller identity the upstream auth layer injects.
// Authentication itself happens outside this service.
func identityFrom(r *http.Request) Identity {
	return Identity{
		UserID: r.Header.Get("X-User-ID"),
		Email:  r.Header.Get("X-User-Email"),
		Role:   r.Header.Get("X-User-Role"),
	}
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"storage": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["storage"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	who := identityFrom(r)

	switch parts[1] {
	case "initiatives":
		s.handleInitiatives(w, r, who, parts[2:])
	case "changelog":
		s.handleChangelog(w, r, parts[2:])
	case "logs":
		s.handleLogs(w, r, parts[2:])
	case "retention":
		s.handleRetention(w, r, parts[2:])
	case "snapshots":
		s.handleSnapshots(w, r, who, parts[2:])
	case "notifications":
		s.handleNotifications(w, r, who, parts[2:])
	case "users":
		s.handleUsers(w, r, who, parts[2:])
	case "settings":
		s.handleSettings(w, r, who, parts[2:])
	case "reports":
		s.handleReports(w, r, who, parts[2:])
	case "support":
		s.handleSupport(w, r, who, parts[2:])
	case "search":
		s.handleSearch(w, r, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleInitiatives(w http.ResponseWriter, r *http.Request, who Identity, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		includeDeleted := r.URL.Query().Get("includeDeleted") == "1"
		items, res := s.service.ListInitiatives(r.Context(), includeDeleted)
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"initiatives": items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var item initiative.Initiative
		if err := decodeBody(r, &item); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		saved, res := s.service.SaveInitiative(r.Context(), who, item)
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusCreated, saved)

	case len(rest) == 1 && rest[0] == "sync" && r.Method == http.MethodPost:
		if !s.authorizeSync(w, r) {
			return
		}
		var body struct {
			Initiatives []initiative.Initiative `json:"initiatives"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		rep, res := s.service.SyncInitiatives(r.Context(), who, body.Initiatives)
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, rep)

	case len(rest) == 1 && rest[0] == "push" && r.Method == http.MethodPost:
		if !s.authorizeSync(w, r) {
			return
		}
		var body struct {
			Initiatives []initiative.Initiative `json:"initiatives"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if res := s.service.PushInitiatives(r.Context(), who, body.Initiatives); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && r.Method == http.MethodGet:
		item, found, res := s.service.GetInitiative(r.Context(), rest[0])
		if !res.OK {
			writeResult(w, res)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Initiative not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case len(rest) == 1 && r.Method == http.MethodPut:
		var item initiative.Initiative
		if err := decodeBody(r, &item); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		item.ID = rest[0]
		saved, res := s.service.UpdateInitiative(r.Context(), who, item)
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, saved)

	case len(rest) == 1 && r.Method == http.MethodDelete:
		removed, res := s.service.DeleteInitiative(r.Context(), who, rest[0])
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// authorizeSync guards the bulk endpoints with the shared sync token.
func (s *HTTPServer) authorizeSync(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-Sync-Token") != s.syncToken {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid sync token", nil)
		return false
	}
	return true
}

func (s *HTTPServer) handleChangelog(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 0 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	records, res := s.service.RecentChanges(r.Context(), limit)
	if !res.OK {
		writeResult(w, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": records})
}

func (s *HTTPServer) handleLogs(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	category := rest[0]
	if category != auditlog.CategoryErrors && category != auditlog.CategoryActivity {
		writeError(w, http.StatusBadRequest, "INVALID_CATEGORY", "Unknown log category", nil)
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -7)
	if v := r.URL.Query().Get("start"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "start must be YYYY-MM-DD", nil)
			return
		}
		start = parsed
	}
	if v := r.URL.Query().Get("end"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "end must be YYYY-MM-DD", nil)
			return
		}
		end = parsed
	}

	filter := auditlog.Filter{
		Severity: r.URL.Query().Get("severity"),
		Actor:    r.URL.Query().Get("actor"),
	}
	entries, res := s.service.QueryLogs(r.Context(), category, start, end, filter)
	if !res.OK {
		writeResult(w, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *HTTPServer) handleRetention(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 || rest[0] != "sweep" || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	deleted, res := s.service.RunRetentionSweep(r.Context())
	if !res.OK {
		writeResult(w, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *HTTPServer) handleSnapshots(w http.ResponseWriter, r *http.Request, who Identity, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		infos, res := s.service.ListSnapshots(r.Context())
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": infos})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var body struct {
			Label string `json:"label"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		info, res := s.service.CreateSnapshot(r.Context(), who, body.Label)
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusCreated, info)

	case len(rest) == 1 && r.Method == http.MethodGet:
		snap, res := s.service.GetSnapshot(r.Context(), rest[0])
		if !res.OK {
			writeResult(w, res)
			return
		}
		if snap == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Snapshot not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, snap)

	case len(rest) == 2 && rest[1] == "restore" && r.Method == http.MethodPost:
		if res := s.service.RestoreSnapshot(r.Context(), who, rest[0]); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, who Identity, rest []string) {
	if who.UserID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing caller identity", nil)
		return
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		list, res := s.service.Notifications(r.Context(), who.UserID)
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": list})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var n notify.Notification
		if err := decodeBody(r, &n); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if n.UserID == "" {
			n.UserID = who.UserID
		}
		if res := s.service.Notify(r.Context(), n); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})

	case len(rest) == 0 && r.Method == http.MethodDelete:
		if res := s.service.ClearNotifications(r.Context(), who.UserID); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "read-all" && r.Method == http.MethodPost:
		if res := s.service.MarkAllNotificationsRead(r.Context(), who.UserID); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[1] == "read" && r.Method == http.MethodPost:
		if res := s.service.MarkNotificationRead(r.Context(), who.UserID, rest[0]); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, who Identity, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		users, res := s.service.Users(r.Context())
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var user userstore.User
		if err := decodeBody(r, &user); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if res := s.service.SaveUser(r.Context(), who, user); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && r.Method == http.MethodDelete:
		removed, res := s.service.RemoveUser(r.Context(), who, rest[0])
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSettings(w http.ResponseWriter, r *http.Request, who Identity, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch r.Method {
	case http.MethodGet:
		settings, res := s.service.Settings(r.Context())
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	case http.MethodPut:
		var settings userstore.Settings
		if err := decodeBody(r, &settings); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if res := s.service.SaveSettings(r.Context(), who, settings); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReports(w http.ResponseWriter, r *http.Request, who Identity, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var rep report.Report
		if err := decodeBody(r, &rep); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if res := s.service.SaveReport(r.Context(), who, rep); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})

	case len(rest) == 1 && r.Method == http.MethodGet:
		teams, res := s.service.ListReports(r.Context(), rest[0])
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"teams": teams})

	case len(rest) == 2 && r.Method == http.MethodGet:
		teamID := rest[1]
		if teamID == "department" {
			teamID = ""
		}
		rep, res := s.service.GetReport(r.Context(), rest[0], teamID)
		if !res.OK {
			writeResult(w, res)
			return
		}
		if rep == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Report not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, rep)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSupport(w http.ResponseWriter, r *http.Request, who Identity, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch {
	case rest[0] == "tickets" && r.Method == http.MethodGet:
		tickets, res := s.service.ListTickets(r.Context())
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})

	case rest[0] == "tickets" && r.Method == http.MethodPost:
		var t support.Ticket
		if err := decodeBody(r, &t); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if res := s.service.AddTicket(r.Context(), who, t); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})

	case rest[0] == "feedback" && r.Method == http.MethodGet:
		entries, res := s.service.ListFeedback(r.Context())
		if !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"feedback": entries})

	case rest[0] == "feedback" && r.Method == http.MethodPost:
		var f support.Feedback
		if err := decodeBody(r, &f); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if res := s.service.AddFeedback(r.Context(), who, f); !res.OK {
			writeResult(w, res)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 0 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	q := search.Query{
		Text:         r.URL.Query().Get("q"),
		FilterTeamID: r.URL.Query().Get("team"),
		FilterStatus: r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			q.Limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			q.Offset = parsed
		}
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Sync-Token, X-User-ID, X-User-Email, X-User-Role")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeResult translates a failed Result into the matching HTTP error.
func writeResult(w http.ResponseWriter, res Result) {
	derr := res.domainError()
	writeError(w, derr.Status, derr.Code, derr.Message, derr.Details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
