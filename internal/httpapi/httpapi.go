package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/service"
	"omnistock/backend/internal/stock"
	"omnistock/backend/internal/store"
)

var (
	staffRoles = []string{domain.RoleOwner, domain.RoleCashier}
	allRoles   = []string{domain.RoleOwner, domain.RoleCashier, domain.RoleCustomer}
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	signupLimiter *attemptLimiter
	logger        *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		signupLimiter: newAttemptLimiter(5, time.Minute),
		logger:        logger,
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/signup", a.handleSignup)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/items", a.requireAuth(a.handleItems, staffRoles...))
	mux.HandleFunc("/api/v1/items/names", a.requireAuth(a.handleItemNames, allRoles...))
	mux.HandleFunc("/api/v1/items/", a.requireAuth(a.handleItemActions, staffRoles...))
	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, staffRoles...))
	mux.HandleFunc("/api/v1/orders/online", a.requireAuth(a.handleOnlineOrderList, domain.RoleOwner))
	mux.HandleFunc("/api/v1/online-orders", a.requireAuth(a.handleOnlineOrders, allRoles...))
	mux.HandleFunc("/api/v1/check-stock", a.requireAuth(a.handleCheckStock, allRoles...))
	mux.HandleFunc("/api/v1/compare/", a.requireAuth(a.handleCompare, allRoles...))

	mux.HandleFunc("/api/v1/negotiations", a.requireAuth(a.handleNegotiations, allRoles...))
	mux.HandleFunc("/api/v1/negotiations/mine", a.requireAuth(a.handleMyNegotiations, allRoles...))
	mux.HandleFunc("/api/v1/negotiations/", a.requireAuth(a.handleNegotiationActions, domain.RoleOwner))

	mux.HandleFunc("/api/v1/notifications", a.requireAuth(a.handleNotifications, domain.RoleOwner))
	mux.HandleFunc("/api/v1/notifications/", a.requireAuth(a.handleNotificationActions, domain.RoleOwner))
	mux.HandleFunc("/api/v1/sales/dashboard", a.requireAuth(a.handleDashboard, domain.RoleOwner))
	mux.HandleFunc("/api/v1/sales/analytics", a.requireAuth(a.handleSalesAnalytics, domain.RoleOwner))
	mux.HandleFunc("/api/v1/sales/top", a.requireAuth(a.handleTopSales(false), domain.RoleOwner))
	mux.HandleFunc("/api/v1/sales/top/all", a.requireAuth(a.handleTopSales(true), domain.RoleOwner))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleOwner))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.signupLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many signup attempts"))
		return
	}

	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	profile, err := a.auth.Signup(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, errors.New("email already registered"))
		case errors.Is(err, errInvalidSignup), errors.Is(err, store.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": profile})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, errInvalidCredentials) && !errors.Is(err, errAccountInactive) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.service.ListItems(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req domain.ItemCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.CreateItem(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleItemNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	names, err := a.service.ListItemNames(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": names})
}

// handleItemActions serves /api/v1/items/{id} and its sub-resources:
// brands, brands/{brand}, stock, ratio and limits.
func (a *API) handleItemActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/items/"), "/")
	parts := strings.SplitN(tail, "/", 3)
	id := strings.TrimSpace(parts[0])
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("item id required"))
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		item, err := a.service.GetItem(r.Context(), id)
		writeItemResult(w, item, err)
	case action == "" && r.Method == http.MethodPatch:
		var req domain.ItemUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.UpdateItem(r.Context(), id, req)
		writeItemResult(w, item, err)
	case action == "" && r.Method == http.MethodDelete:
		if err := a.service.DeleteItem(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	case action == "brands" && len(parts) == 2 && r.Method == http.MethodPost:
		var req domain.AddBrandRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.AddBrand(r.Context(), id, req)
		writeItemResult(w, item, err)
	case action == "brands" && len(parts) == 3 && r.Method == http.MethodDelete:
		item, err := a.service.RemoveBrand(r.Context(), id, parts[2])
		writeItemResult(w, item, err)
	case action == "stock" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		var req domain.EditStockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.EditStock(r.Context(), id, req)
		writeItemResult(w, item, err)
	case action == "ratio" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		var req domain.EditRatioRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("new_ratio must be a number"))
			return
		}
		item, err := a.service.EditRatio(r.Context(), id, req)
		writeItemResult(w, item, err)
	case action == "limits" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		var req domain.EditLimitRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.EditLimits(r.Context(), id, req)
		writeItemResult(w, item, err)
	case action == "" || action == "brands" || action == "stock" || action == "ratio" || action == "limits":
		writeMethodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown item action"))
	}
}

func writeItemResult(w http.ResponseWriter, item domain.Item, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orders, err := a.service.ListInStoreOrders(r.Context(), parsePositiveLimit(r.URL.Query().Get("limit"), 0, 500))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	case http.MethodPost:
		var req domain.InStoreOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		// Older counter clients send no channel and mark online sales by
		// including the buyer email.
		if req.Channel == "" {
			req.Channel = domain.ChannelOffline
			if strings.TrimSpace(req.BuyerEmail) != "" {
				req.Channel = domain.ChannelOnline
			}
		}
		resp, err := a.service.CreateInStoreOrder(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOnlineOrderList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	orders, err := a.service.ListOnlineOrders(r.Context(), parsePositiveLimit(r.URL.Query().Get("limit"), 0, 500))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (a *API) handleOnlineOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.OnlineOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.CreateOnlineOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleCheckStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.CheckStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.CheckStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	itemName := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/compare/"), "/")
	resp, err := a.service.CompareBrands(r.Context(), itemName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleNegotiations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		negotiations, err := a.service.ListNegotiations(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"negotiations": negotiations})
	case http.MethodPost:
		var req domain.NegotiationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		negotiation, err := a.service.SubmitNegotiation(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"negotiation": negotiation})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMyNegotiations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	negotiations, err := a.service.ListCustomerNegotiations(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"negotiations": negotiations})
}

func (a *API) handleNegotiationActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/negotiations/"), "/")
	if !strings.HasSuffix(tail, "/decision") {
		writeError(w, http.StatusNotFound, errors.New("unknown negotiation action"))
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimSuffix(tail, "/decision"), "/")

	var req domain.NegotiationDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	negotiation, err := a.service.DecideNegotiation(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"negotiation": negotiation})
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	notifications, err := a.service.ListNotifications(r.Context(), parsePositiveLimit(r.URL.Query().Get("limit"), 20, 200))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (a *API) handleNotificationActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/notifications/"), "/")
	if !strings.HasSuffix(tail, "/read") {
		writeError(w, http.StatusNotFound, errors.New("unknown notification action"))
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimSuffix(tail, "/read"), "/")
	if err := a.service.MarkNotificationRead(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "read": true})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	dashboard, err := a.service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleSalesAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	analytics, err := a.service.SalesAnalytics(
		r.Context(),
		parsePositiveLimit(query.Get("range"), 30, 365),
		parseChannelFilter(query.Get("channel")),
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (a *API) handleTopSales(detail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		query := r.URL.Query()
		top, err := a.service.TopSales(r.Context(), domain.TopQuery{
			Type:      query.Get("type"),
			Metric:    query.Get("metric"),
			Limit:     parsePositiveLimit(query.Get("limit"), 5, 100),
			RangeDays: parsePositiveLimit(query.Get("range"), 0, 365),
			Channel:   parseChannelFilter(query.Get("channel")),
		}, detail)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": top})
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now.Add(time.Minute)
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("to must be YYYY-MM-DD"))
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	logs, err := a.service.ListAuditLogs(r.Context(), from, to, parsePositiveLimit(query.Get("limit"), 100, 500))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

func parseChannelFilter(raw string) domain.Channel {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "all" {
		return ""
	}
	return domain.Channel(raw)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusFor maps service and store errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		invalid      *service.ValidationError
		stockInvalid *stock.ValidationError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &stockInvalid), errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the log; clients get a generic message.
	msg := err.Error()
	if status >= 500 {
		zap.L().Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
