package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/resolutionwall/backend/internal/config"
	"github.com/resolutionwall/backend/internal/resolutions"
	"github.com/resolutionwall/backend/internal/visitor"
)

// feedViewKey identifies the community feed's pagination cursor in the
// visitor session. Other paginated views get their own keys.
const feedViewKey = "resolutions_page"

// Slider defaults presented by the frontend form.
const (
	defaultPastYearScore        = 3
	defaultNewYearScore         = 4
	defaultCompletionConfidence = 3
)

var (
	errMissingService = errors.New("resolutions service dependency required")
)

// Dependencies wires the HTTP layer's collaborators.
type Dependencies struct {
	Service *resolutions.Service
	Config  config.AppConfig
	Logger  *zap.Logger
}

// NewHTTPHandler builds the public router: session bootstrap, submission,
// the paginated community feed with its navigation triggers, and the
// aggregate statistics panel.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Service == nil {
		return nil, errMissingService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		service: deps.Service,
		cfg:     deps.Config,
		logger:  logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.Use(visitor.SessionMiddleware(deps.Config.SessionSecret, deps.Config.SessionCookieName))
	api.Use(visitor.IdentityMiddleware(resolutions.NewUUIDProvider(), logger))
	api.GET("/session", handler.handleSession)
	api.POST("/resolutions", handler.handleSubmit)
	api.GET("/resolutions/feed", handler.handleFeed)
	api.POST("/resolutions/feed/next", handler.handleFeedNext)
	api.POST("/resolutions/feed/previous", handler.handleFeedPrevious)
	api.GET("/stats", handler.handleStats)

	return router, nil
}

type httpHandler struct {
	service *resolutions.Service
	cfg     config.AppConfig
	logger  *zap.Logger
}

// corsMiddleware echoes the caller's origin instead of using a wildcard:
// the session cookie requires credentialed requests, and browsers reject
// Access-Control-Allow-Origin "*" when credentials are enabled.
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type formSchemaPayload struct {
	MaxMessageLen        int            `json:"max_message_len"`
	Countries            []string       `json:"countries"`
	ResolutionCategories []string       `json:"resolution_categories"`
	Motivations          []string       `json:"motivations"`
	SliderDefaults       map[string]int `json:"slider_defaults"`
}

type sessionPayload struct {
	AnonID       string            `json:"anon_id"`
	NewVisitor   bool              `json:"new_visitor"`
	HasSubmitted bool              `json:"has_submitted"`
	Form         formSchemaPayload `json:"form"`
}

func (h *httpHandler) handleSession(c *gin.Context) {
	visitorContext, ok := visitor.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "missing_visitor_context"})
		return
	}

	hasSubmitted, err := h.resolveSubmissionGate(c, visitorContext)
	if err != nil {
		h.respondServiceError(c, err, "session_unavailable")
		return
	}

	c.JSON(http.StatusOK, sessionPayload{
		AnonID:       visitorContext.AnonID,
		NewVisitor:   visitorContext.IsNew,
		HasSubmitted: hasSubmitted,
		Form: formSchemaPayload{
			MaxMessageLen:        h.cfg.MaxMessageLen,
			Countries:            h.cfg.Countries,
			ResolutionCategories: h.cfg.ResolutionCategories,
			Motivations:          h.cfg.Motivations,
			SliderDefaults: map[string]int{
				"past_year_score":       defaultPastYearScore,
				"new_year_score":        defaultNewYearScore,
				"completion_confidence": defaultCompletionConfidence,
			},
		},
	})
}

// resolveSubmissionGate answers "has this identity already submitted". The
// session flag is the fast path; on a miss the store is probed and a
// positive result is backfilled into the session, so a visitor returning
// with a fresh render still sees the form suppressed.
func (h *httpHandler) resolveSubmissionGate(c *gin.Context, visitorContext *visitor.Context) (bool, error) {
	if visitorContext.HasSubmitted() {
		return true, nil
	}

	anonID, err := resolutions.NewAnonID(visitorContext.AnonID)
	if err != nil {
		return false, err
	}

	exists, err := h.service.HasSubmitted(c.Request.Context(), anonID)
	if err != nil {
		return false, err
	}
	if exists {
		visitorContext.MarkSubmitted()
		if err := visitorContext.Save(); err != nil {
			h.logger.Warn("failed to backfill submission flag", zap.Error(err))
		}
	}
	return exists, nil
}

type submitRequestPayload struct {
	Message              string   `json:"message"`
	Age                  int64    `json:"age"`
	Country              string   `json:"country"`
	ResolutionCategory   []string `json:"resolution_category"`
	Motivation           []string `json:"motivation"`
	PastYearScore        int64    `json:"past_year_score"`
	NewYearScore         int64    `json:"new_year_score"`
	CompletionConfidence int64    `json:"completion_confidence"`
}

type resolutionPayload struct {
	Message              string    `json:"message"`
	CreatedAt            time.Time `json:"created_at"`
	Age                  *int64    `json:"age,omitempty"`
	Country              *string   `json:"country,omitempty"`
	ResolutionCategory   []string  `json:"resolution_category"`
	Motivation           []string  `json:"motivation"`
	PastYearScore        *int64    `json:"past_year_score,omitempty"`
	NewYearScore         *int64    `json:"new_year_score,omitempty"`
	CompletionConfidence *int64    `json:"completion_confidence,omitempty"`
}

func (h *httpHandler) handleSubmit(c *gin.Context) {
	visitorContext, ok := visitor.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "missing_visitor_context"})
		return
	}

	var request submitRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	hasSubmitted, err := h.resolveSubmissionGate(c, visitorContext)
	if err != nil {
		h.respondServiceError(c, err, "submission_gate_unavailable")
		return
	}

	input := resolutions.FormInput{
		Message:              request.Message,
		Age:                  request.Age,
		Country:              request.Country,
		Categories:           request.ResolutionCategory,
		Motivations:          request.Motivation,
		PastYearScore:        request.PastYearScore,
		NewYearScore:         request.NewYearScore,
		CompletionConfidence: request.CompletionConfidence,
		Submitted:            true,
	}
	draft, err := resolutions.Collect(input, resolutions.CollectOptions{
		Enabled:       !hasSubmitted,
		MaxMessageLen: h.cfg.MaxMessageLen,
		Countries:     h.cfg.Countries,
		Categories:    h.cfg.ResolutionCategories,
		Motivations:   h.cfg.Motivations,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErrorCode(err)})
		return
	}
	if draft == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already_submitted"})
		return
	}

	anonID, err := resolutions.NewAnonID(visitorContext.AnonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid_identity"})
		return
	}

	stored, err := h.service.Submit(c.Request.Context(), anonID, *draft)
	if errors.Is(err, resolutions.ErrAlreadySubmitted) {
		// Lost the check-then-act race; the store's unique index caught it.
		visitorContext.MarkSubmitted()
		if saveErr := visitorContext.Save(); saveErr != nil {
			h.logger.Warn("failed to persist submission flag", zap.Error(saveErr))
		}
		c.JSON(http.StatusConflict, gin.H{"error": "already_submitted"})
		return
	}
	if err != nil {
		// The gate stays open so the visitor can retry.
		c.JSON(http.StatusServiceUnavailable, gin.H{"submitted": false, "error": "store_unavailable"})
		return
	}

	visitorContext.MarkSubmitted()
	if err := visitorContext.Save(); err != nil {
		h.logger.Warn("failed to persist submission flag", zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{"submitted": true, "resolution": toResolutionPayload(*stored)})
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, resolutions.ErrCategoryRequired):
		return "category_required"
	case errors.Is(err, resolutions.ErrMotivationRequired):
		return "motivation_required"
	case errors.Is(err, resolutions.ErrMessageRequired):
		return "message_required"
	case errors.Is(err, resolutions.ErrMessageTooLong):
		return "message_too_long"
	case errors.Is(err, resolutions.ErrAgeOutOfRange):
		return "age_out_of_range"
	case errors.Is(err, resolutions.ErrScoreOutOfRange):
		return "score_out_of_range"
	case errors.Is(err, resolutions.ErrUnknownCountry):
		return "unknown_country"
	case errors.Is(err, resolutions.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, resolutions.ErrUnknownMotivation):
		return "unknown_motivation"
	default:
		return "invalid_submission"
	}
}

type feedItemPayload struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type feedPayload struct {
	Items       []feedItemPayload `json:"items"`
	Page        int               `json:"page"`
	TotalPages  int               `json:"total_pages"`
	TotalItems  int64             `json:"total_items"`
	HasPrevious bool              `json:"has_previous"`
	HasNext     bool              `json:"has_next"`
}

func (h *httpHandler) handleFeed(c *gin.Context) {
	visitorContext, ok := visitor.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "missing_visitor_context"})
		return
	}
	h.renderFeed(c, visitorContext)
}

func (h *httpHandler) handleFeedNext(c *gin.Context) {
	h.navigateFeed(c, func(paginator *resolutions.Paginator, total int) { paginator.Next(total) })
}

func (h *httpHandler) handleFeedPrevious(c *gin.Context) {
	h.navigateFeed(c, func(paginator *resolutions.Paginator, total int) { paginator.Previous(total) })
}

// navigateFeed applies one navigation trigger and then re-renders the feed
// from scratch: a page change is only observable through a full
// re-evaluation of count, clamp, and fetch.
func (h *httpHandler) navigateFeed(c *gin.Context, move func(*resolutions.Paginator, int)) {
	visitorContext, ok := visitor.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "missing_visitor_context"})
		return
	}

	paginator, err := resolutions.NewPaginator(h.cfg.PageSize, feedViewKey, visitorContext)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pagination_unavailable"})
		return
	}

	total, err := h.service.TotalCount(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "feed_unavailable")
		return
	}

	move(paginator, int(total))
	h.renderFeed(c, visitorContext)
}

func (h *httpHandler) renderFeed(c *gin.Context, visitorContext *visitor.Context) {
	paginator, err := resolutions.NewPaginator(h.cfg.PageSize, feedViewKey, visitorContext)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pagination_unavailable"})
		return
	}

	total, err := h.service.TotalCount(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "feed_unavailable")
		return
	}

	window := paginator.Paginate(int(total))
	records, err := h.service.ListPage(c.Request.Context(), window.Limit, window.Offset)
	if err != nil {
		h.respondServiceError(c, err, "feed_unavailable")
		return
	}

	if err := visitorContext.Save(); err != nil {
		h.logger.Warn("failed to persist page cursor", zap.Error(err))
	}

	items := make([]feedItemPayload, 0, len(records))
	for _, record := range records {
		items = append(items, feedItemPayload{Message: record.Message, CreatedAt: record.CreatedAt})
	}

	c.JSON(http.StatusOK, feedPayload{
		Items:       items,
		Page:        window.Page,
		TotalPages:  window.TotalPages,
		TotalItems:  total,
		HasPrevious: window.HasPrevious,
		HasNext:     window.HasNext,
	})
}

type statsPayload struct {
	Total             int            `json:"total"`
	AveragePastYear   *float64       `json:"average_past_year_score"`
	AverageNewYear    *float64       `json:"average_new_year_score"`
	AverageConfidence *float64       `json:"average_completion_confidence"`
	CategoryCounts    map[string]int `json:"category_counts"`
	MotivationCounts  map[string]int `json:"motivation_counts"`
}

func (h *httpHandler) handleStats(c *gin.Context) {
	records, err := h.service.AllRecords(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "stats_unavailable")
		return
	}

	stats := resolutions.Aggregate(records)
	c.JSON(http.StatusOK, statsPayload{
		Total:             stats.Total,
		AveragePastYear:   stats.AveragePastYear,
		AverageNewYear:    stats.AverageNewYear,
		AverageConfidence: stats.AverageConfidence,
		CategoryCounts:    stats.CategoryCounts,
		MotivationCounts:  stats.MotivationCounts,
	})
}

// respondServiceError surfaces a read-path failure as the render cycle's
// generic error, carrying the service error code when one exists.
func (h *httpHandler) respondServiceError(c *gin.Context, err error, code string) {
	var serviceErr *resolutions.ServiceError
	if errors.As(err, &serviceErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": code, "code": serviceErr.Code()})
		return
	}
	h.logger.Error("request failed", zap.String("error_code", code), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}

func toResolutionPayload(record resolutions.Record) resolutionPayload {
	return resolutionPayload{
		Message:              record.Message,
		CreatedAt:            record.CreatedAt,
		Age:                  record.Age,
		Country:              record.Country,
		ResolutionCategory:   record.Categories(),
		Motivation:           record.Motivations(),
		PastYearScore:        record.PastYearScore,
		NewYearScore:         record.NewYearScore,
		CompletionConfidence: record.CompletionConfidence,
	}
}
