package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/experiment"
	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/pricing"
	"github.com/sells-group/pricing-engine/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	lookback := 24
	if v := r.URL.Query().Get("lookback_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "lookback_hours must be a positive integer")
			return
		}
		lookback = n
	}
	snap, err := s.collector.Collect(r.Context(), lookback)
	if err != nil {
		s.fail(w, err, "collect metrics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentType string `json:"content_type"`
		BasePrice   string `json:"base_price"`
		Currency    string `json:"currency"`
		PerWord     bool   `json:"per_word"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ContentType == "" {
		writeError(w, http.StatusBadRequest, "content_type is required")
		return
	}
	amount, err := decimal.NewFromString(req.BasePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "base_price must be a decimal string")
		return
	}
	price := model.Money{Amount: amount, Currency: req.Currency}
	if err := price.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreatePricingModel(r.Context(), model.PricingModel{
		ID:          newID(),
		ContentType: req.ContentType,
		BasePrice:   price,
		PerWord:     req.PerWord,
	})
	if err != nil {
		s.fail(w, err, "create pricing model")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpsertMarketData(w http.ResponseWriter, r *http.Request) {
	var md model.MarketData
	if !decode(w, r, &md) {
		return
	}
	if md.ContentType == "" {
		writeError(w, http.StatusBadRequest, "content_type is required")
		return
	}
	if md.Segment == "" {
		md.Segment = "default"
	}
	if md.CollectedAt.IsZero() {
		md.CollectedAt = time.Now().UTC()
	}
	if err := s.store.UpsertMarketData(r.Context(), md); err != nil {
		s.fail(w, err, "upsert market data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var p model.ClientPricingProfile
	if !decode(w, r, &p) {
		return
	}
	p.ClientID = chi.URLParam(r, "clientID")
	if err := s.store.UpsertClientProfile(r.Context(), p); err != nil {
		s.fail(w, err, "upsert client profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (s *Server) handleCalculatePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID      string             `json:"client_id"`
		ContentType   string             `json:"content_type"`
		Segment       string             `json:"segment,omitempty"`
		ProjectRef    string             `json:"project_ref,omitempty"`
		Spec          *model.ContentSpec `json:"spec,omitempty"`
		DeliveryHours int                `json:"delivery_hours"`
		SystemLoad    *float64           `json:"system_load,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ContentType == "" {
		writeError(w, http.StatusBadRequest, "content_type is required")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	load := s.systemLoad
	if req.SystemLoad != nil {
		load = *req.SystemLoad
	}

	resp, err := s.engine.CalculatePrice(r.Context(), pricing.PriceRequest{
		ClientID:    req.ClientID,
		ContentType: req.ContentType,
		Segment:     req.Segment,
		ProjectRef:  req.ProjectRef,
		Spec:        req.Spec,
		Delivery:    time.Duration(req.DeliveryHours) * time.Hour,
		SystemLoad:  load,
	})
	if err != nil {
		s.fail(w, err, "calculate price")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.QuoteFilter{
		ClientID:    q.Get("client_id"),
		ContentType: q.Get("content_type"),
		Status:      model.QuoteStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	quotes, err := s.store.ListQuotes(r.Context(), filter)
	if err != nil {
		s.fail(w, err, "list quotes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes, "count": len(quotes)})
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.store.GetQuote(r.Context(), chi.URLParam(r, "quoteID"))
	if err != nil {
		s.fail(w, err, "get quote")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleQuoteDecision moves a pending quote to accepted or rejected.
func (s *Server) handleQuoteDecision(decision string) http.HandlerFunc {
	to := model.QuoteAccepted
	if decision == "reject" {
		to = model.QuoteRejected
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quoteID")
		if err := s.store.TransitionQuote(r.Context(), id, model.QuotePending, to); err != nil {
			s.fail(w, err, "transition quote")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(to)})
	}
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	strategy := chi.URLParam(r, "strategy")
	var req struct {
		ContentType  string `json:"content_type"`
		Segment      string `json:"segment,omitempty"`
		CurrentPrice string `json:"current_price"`
		Currency     string `json:"currency"`
	}
	if !decode(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.CurrentPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "current_price must be a decimal string")
		return
	}
	current := model.Money{Amount: amount, Currency: req.Currency}
	if err := current.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	segment := req.Segment
	if segment == "" {
		segment = "default"
	}

	var rec any
	switch strategy {
	case "revenue":
		rec, err = s.optimizer.ForRevenue(r.Context(), req.ContentType, current)
	case "conversion":
		rec, err = s.optimizer.ForConversion(r.Context(), req.ContentType, segment, current)
	case "market-share":
		rec, err = s.optimizer.ForMarketShare(r.Context(), req.ContentType, current)
	default:
		writeError(w, http.StatusNotFound, "unknown strategy: "+strategy)
		return
	}
	if err != nil {
		s.fail(w, err, "optimize price")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDesignExperiment(w http.ResponseWriter, r *http.Request) {
	var exp model.PricingExperiment
	if !decode(w, r, &exp) {
		return
	}
	created, err := s.experiments.Design(r.Context(), exp)
	if err != nil {
		s.fail(w, err, "design experiment")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := s.store.ListExperiments(r.Context(), store.ExperimentFilter{
		Status: model.ExperimentStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		s.fail(w, err, "list experiments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": exps, "count": len(exps)})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.store.GetExperiment(r.Context(), chi.URLParam(r, "experimentID"))
	if err != nil {
		s.fail(w, err, "get experiment")
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleStartExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "experimentID")
	if err := s.experiments.Start(r.Context(), id); err != nil {
		s.fail(w, err, "start experiment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(model.ExperimentRunning)})
}

func (s *Server) handleStopExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "experimentID")
	if err := s.experiments.Stop(r.Context(), id); err != nil {
		s.fail(w, err, "stop experiment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(model.ExperimentStopped)})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	assignment, err := s.experiments.Assign(r.Context(), chi.URLParam(r, "experimentID"), req.ClientID)
	if err != nil {
		s.fail(w, err, "assign client")
		return
	}
	if assignment == nil {
		// Client fell into the holdout share.
		writeJSON(w, http.StatusOK, map[string]any{"assigned": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assigned": true, "assignment": assignment})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VariantID string  `json:"variant_id"`
		ClientID  string  `json:"client_id,omitempty"`
		Type      string  `json:"type"`
		Value     float64 `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	err := s.experiments.RecordEvent(r.Context(), model.ExperimentEvent{
		ExperimentID: chi.URLParam(r, "experimentID"),
		VariantID:    req.VariantID,
		ClientID:     req.ClientID,
		Type:         model.EventType(req.Type),
		Value:        req.Value,
	})
	if err != nil {
		s.fail(w, err, "record event")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.experiments.Analyze(r.Context(), chi.URLParam(r, "experimentID"))
	if err != nil {
		s.fail(w, err, "analyze experiment")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	rec, err := s.experiments.RecommendWinner(r.Context(), chi.URLParam(r, "experimentID"))
	if err != nil {
		s.fail(w, err, "recommend winner")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// fail maps domain errors to HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, err error, op string) {
	var verr *experiment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"issues": verr.Issues,
		})
	case errors.Is(err, pricing.ErrModelNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zap.L().Error("request failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newID() string {
	return uuid.NewString()
}
