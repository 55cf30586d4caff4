package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
	"github.com/Turnstyle/ria-hunter-sub009/internal/observability/metrics"
)

const serviceName = "ria-hunter"

// Options carries the router's HTTP-level knobs; everything behavioral lives
// in the usecases behind the ports.
type Options struct {
	CookieName     string
	CookieDays     int
	AdminToken     string
	AllowedOrigins []string
	PreviewPrefix  string
	PreviewSuffix  string
	RateLimitRPS   int
	RateLimitBurst int
	MaxInFlight    int
}

type Router struct {
	search  ports.FirmSearchService
	answer  ports.AnswerService
	stream  ports.StreamService
	quota   ports.QuotaService
	reindex ports.ReindexService
	metrics *metrics.HTTPServerMetrics
	opts    Options
	log     *slog.Logger
}

func NewRouter(
	search ports.FirmSearchService,
	answer ports.AnswerService,
	stream ports.StreamService,
	quota ports.QuotaService,
	reindex ports.ReindexService,
	serverMetrics *metrics.HTTPServerMetrics,
	opts Options,
	log *slog.Logger,
) *Router {
	if opts.CookieName == "" {
		opts.CookieName = "ria_usage"
	}
	if opts.CookieDays <= 0 {
		opts.CookieDays = 30
	}
	return &Router{
		search:  search,
		answer:  answer,
		stream:  stream,
		quota:   quota,
		reindex: reindex,
		metrics: serverMetrics,
		opts:    opts,
		log:     log,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", rt.handleQuery)
	mux.HandleFunc("/ask", rt.handleAsk)
	mux.HandleFunc("/ask-stream", rt.handleAskStream)
	mux.HandleFunc("/admin/reindex", rt.handleAdminReindex)
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, 50*time.Millisecond)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	handler = corsMiddleware(handler, rt.opts.AllowedOrigins, rt.opts.PreviewPrefix, rt.opts.PreviewSuffix)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type filterOverrides struct {
	Location *string  `json:"location,omitempty"`
	MinAUM   *int64   `json:"min_aum,omitempty"`
	MaxAUM   *int64   `json:"max_aum,omitempty"`
	Services []string `json:"services,omitempty"`
}

func (f *filterOverrides) toDomain() *domain.StructuredFilters {
	if f == nil {
		return nil
	}
	return &domain.StructuredFilters{
		Location: f.Location,
		MinAUM:   f.MinAUM,
		MaxAUM:   f.MaxAUM,
		Services: f.Services,
	}
}

type queryRequest struct {
	Query   string           `json:"query"`
	Filters *filterOverrides `json:"filters,omitempty"`
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (*queryRequest, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return nil, false
	}
	return &req, true
}

type decompositionView struct {
	SemanticQuery     string                   `json:"semantic_query"`
	StructuredFilters domain.StructuredFilters `json:"structured_filters"`
}

type searchMeta struct {
	Relaxed         bool    `json:"relaxed"`
	RelaxationLevel *string `json:"relaxationLevel"`
	ResolvedRegion  string  `json:"resolvedRegion,omitempty"`
}

func metaFromResult(result *domain.SearchResult) searchMeta {
	meta := searchMeta{
		Relaxed:        result.Relaxed(),
		ResolvedRegion: result.ResolvedRegion,
	}
	if result.Relaxed() {
		level := string(result.Relaxation)
		meta.RelaxationLevel = &level
	}
	return meta
}

type queryResponse struct {
	Results       []domain.AggregatedFirm `json:"results"`
	Total         int                     `json:"total"`
	Remaining     int64                   `json:"remaining"`
	IsSubscriber  bool                    `json:"isSubscriber"`
	Decomposition decompositionView       `json:"decomposition"`
	Meta          searchMeta              `json:"meta"`
}

func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	caller, decision, ok := rt.gate(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.search.Search(r.Context(), req.Query, req.Filters.toDomain())
	if err != nil {
		rt.writeFailure(w, r, err)
		return
	}
	rt.recordSearch("query", result, time.Since(start))

	rt.charge(w, r, caller)
	writeJSON(w, http.StatusOK, queryResponse{
		Results:      result.Firms,
		Total:        result.Total,
		Remaining:    remainingAfterCharge(decision),
		IsSubscriber: decision.IsSubscriber,
		Decomposition: decompositionView{
			SemanticQuery:     result.Plan.SemanticQuery,
			StructuredFilters: result.Plan.Filters,
		},
		Meta: metaFromResult(result),
	})
}

type answerMetadata struct {
	Remaining       int64   `json:"remaining"`
	IsSubscriber    bool    `json:"isSubscriber"`
	Relaxed         bool    `json:"relaxed"`
	RelaxationLevel *string `json:"relaxationLevel"`
	ResolvedRegion  string  `json:"resolvedRegion,omitempty"`
	Degraded        bool    `json:"degraded"`
}

type askResponse struct {
	Answer   string                  `json:"answer"`
	Sources  []domain.AggregatedFirm `json:"sources"`
	Metadata answerMetadata          `json:"metadata"`
}

func answerMetadataFrom(answer *domain.Answer, decision domain.QuotaDecision) answerMetadata {
	meta := metaFromResult(&answer.Search)
	return answerMetadata{
		Remaining:       remainingAfterCharge(decision),
		IsSubscriber:    decision.IsSubscriber,
		Relaxed:         meta.Relaxed,
		RelaxationLevel: meta.RelaxationLevel,
		ResolvedRegion:  meta.ResolvedRegion,
		Degraded:        answer.Degraded,
	}
}

func (rt *Router) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	caller, decision, ok := rt.gate(w, r)
	if !ok {
		return
	}

	start := time.Now()
	answer, err := rt.answer.Answer(r.Context(), req.Query, req.Filters.toDomain())
	if err != nil {
		rt.writeFailure(w, r, err)
		return
	}
	rt.recordSearch("ask", &answer.Search, time.Since(start))
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, "ask", answer.Degraded)
	}

	rt.charge(w, r, caller)
	writeJSON(w, http.StatusOK, askResponse{
		Answer:   answer.Text,
		Sources:  answer.Sources,
		Metadata: answerMetadataFrom(answer, decision),
	})
}

type reindexRequest struct {
	CRDNumbers []int64 `json:"crd_numbers"`
}

func (rt *Router) handleAdminReindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rt.opts.AdminToken != "" && bearerToken(r) != rt.opts.AdminToken {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req reindexRequest
	// An empty body means "everything"; malformed JSON is still a caller bug.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	var (
		enqueued int
		err      error
	)
	if len(req.CRDNumbers) > 0 {
		enqueued, err = rt.reindex.Enqueue(r.Context(), req.CRDNumbers)
	} else {
		enqueued, err = rt.reindex.EnqueueAll(r.Context())
	}
	if err != nil {
		rt.log.Error("reindex enqueue failed", "enqueued", enqueued, "error", err)
		rt.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"enqueued": enqueued})
}

// gate resolves the caller and runs the quota check before any retrieval
// work. A denial writes the 402 itself and touches neither counters nor
// cookies.
func (rt *Router) gate(w http.ResponseWriter, r *http.Request) (caller, domain.QuotaDecision, bool) {
	c := resolveCaller(r, rt.opts.CookieName)

	var decision domain.QuotaDecision
	tier := "anonymous"
	if c.anonymous {
		decision = rt.quota.CheckAnonymous(c.cookieCount)
	} else {
		decision = rt.quota.CheckUser(r.Context(), c.userID)
		tier = "free"
		if decision.IsSubscriber {
			tier = "subscriber"
		}
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuotaDecision(serviceName, tier, decision.Allowed)
	}

	if !decision.Allowed {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":           "monthly request limit reached",
			"code":            "PAYMENT_REQUIRED",
			"remaining":       decision.Remaining,
			"isSubscriber":    decision.IsSubscriber,
			"upgradeRequired": true,
		})
		return c, decision, false
	}
	return c, decision, true
}

// charge records consumption after a successful response: Redis for
// authenticated callers, a rewritten cookie for anonymous ones. Failures are
// logged and never surfaced, the user already has their answer.
func (rt *Router) charge(w http.ResponseWriter, r *http.Request, c caller) {
	if c.anonymous {
		http.SetCookie(w, rt.usageCookie(c.cookieCount+1))
		return
	}
	if err := rt.quota.ChargeUser(r.Context(), c.userID); err != nil {
		rt.log.Error("quota charge failed", "user_id", c.userID, "error", err)
	}
}

func (rt *Router) usageCookie(count int64) *http.Cookie {
	return &http.Cookie{
		Name:     rt.opts.CookieName,
		Value:    strconv.FormatInt(count, 10),
		Path:     "/",
		MaxAge:   rt.opts.CookieDays * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func remainingAfterCharge(decision domain.QuotaDecision) int64 {
	if decision.Remaining == domain.UnlimitedQuota {
		return domain.UnlimitedQuota
	}
	if decision.Remaining > 0 {
		return decision.Remaining - 1
	}
	return 0
}

func (rt *Router) recordSearch(endpoint string, result *domain.SearchResult, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordSearch(serviceName, endpoint, result.Total, string(result.Relaxation), duration)
	if result.Plan.Fallback {
		rt.metrics.RecordPlanFallback(serviceName)
	}
}

func (rt *Router) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.log.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
