package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
	"github.com/mehdidhammou/ai-connect-four/internal/service/catalog"
	"github.com/mehdidhammou/ai-connect-four/internal/service/game"
	"github.com/mehdidhammou/ai-connect-four/internal/service/health"
)

// GameHandler exposes the local session to renderers.
type GameHandler struct {
	Game    *game.Service
	Catalog *catalog.Service
	Health  *health.Monitor
}

func NewGameHandler(gs *game.Service, cs *catalog.Service, hm *health.Monitor) *GameHandler {
	return &GameHandler{Game: gs, Catalog: cs, Health: hm}
}

// RegisterRoutes mounts the session routes on rg.
func (h *GameHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/api/state", h.GetState)
	rg.POST("/api/solver", h.SelectSolver)
	rg.POST("/api/start", h.Start)
	rg.POST("/api/move", h.Move)
	rg.POST("/api/opening-move", h.OpeningMove)
	rg.POST("/api/reset", h.Reset)
	rg.GET("/api/solvers", h.ListSolvers)
	rg.GET("/api/models/:provider", h.ListModels)
	rg.GET("/api/health", h.GetHealth)
}

func (h *GameHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Game.Snapshot())
}

type selectSolverRequest struct {
	Type string `json:"type" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (h *GameHandler) SelectSolver(c *gin.Context) {
	var req selectSolverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and name are required"})
		return
	}
	identity := domain.SolverIdentity{Type: req.Type, Name: req.Name}

	if h.Catalog != nil {
		known, err := h.Catalog.Contains(c.Request.Context(), identity)
		switch {
		case err != nil:
			// the solver API may be down; the first move will tell
			log.Warn().Str("component", "http").Err(err).Msg("could not verify solver against catalog")
		case !known:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown solver " + identity.String()})
			return
		}
	}

	if err := h.Game.SelectSolver(identity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Game.Snapshot())
}

type startRequest struct {
	Player domain.Player `json:"player" binding:"required"`
}

func (h *GameHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player is required"})
		return
	}

	if err := h.Game.Start(c.Request.Context(), req.Player); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Game.Snapshot())
}

type moveRequest struct {
	Column *int `json:"column" binding:"required"`
}

func (h *GameHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "column is required"})
		return
	}

	if err := h.Game.SubmitHumanMove(c.Request.Context(), *req.Column); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Game.Snapshot())
}

// OpeningMove retries the solver's first move after a failed start.
func (h *GameHandler) OpeningMove(c *gin.Context) {
	identity, ok := h.Game.Solver()
	if !ok {
		writeError(c, domain.ErrSolverUnresolved)
		return
	}

	if err := h.Game.RequestOpeningMove(c.Request.Context(), identity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Game.Snapshot())
}

func (h *GameHandler) Reset(c *gin.Context) {
	h.Game.Reset()
	c.JSON(http.StatusOK, h.Game.Snapshot())
}

func (h *GameHandler) ListSolvers(c *gin.Context) {
	if h.Catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return
	}
	if c.Query("refresh") == "true" {
		h.invalidateCatalog(c)
	}
	solvers, err := h.Catalog.Solvers(c.Request.Context())
	if err != nil {
		log.Warn().Str("component", "http").Err(err).Msg("failed to list solvers")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list solvers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": solvers})
}

func (h *GameHandler) ListModels(c *gin.Context) {
	if h.Catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return
	}
	provider := c.Param("provider")
	if c.Query("refresh") == "true" {
		h.invalidateCatalog(c, provider)
	}
	models, err := h.Catalog.Models(c.Request.Context(), provider)
	if err != nil {
		log.Warn().Str("component", "http").Str("provider", provider).Err(err).Msg("failed to list models")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list models"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": models})
}

// invalidateCatalog drops cached listings so the next read hits the solver
// API. A cache failure only means the stale list is served.
func (h *GameHandler) invalidateCatalog(c *gin.Context, providers ...string) {
	if err := h.Catalog.Invalidate(c.Request.Context(), providers...); err != nil {
		log.Warn().Str("component", "http").Err(err).Msg("failed to invalidate catalog cache")
	}
}

func (h *GameHandler) GetHealth(c *gin.Context) {
	connected := false
	if h.Health != nil {
		connected = h.Health.Connected()
	}
	c.JSON(http.StatusOK, gin.H{"connected": connected})
}

// StatusFor maps session errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMoveFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrMoveNotAllowed),
		errors.Is(err, domain.ErrAlreadyStarted),
		errors.Is(err, game.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPlayer),
		errors.Is(err, domain.ErrSolverUnresolved):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Str("component", "http").Str("path", c.Request.URL.Path).Err(err).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
