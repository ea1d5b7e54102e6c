package controller

import (
	"errors"
	"net/http"

	"idnames-go/internal/service"
	"idnames-go/internal/service/naming"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NamingController struct {
	namingService *naming.NamingService
	logger        *zap.Logger
}

func NewNamingController(namingService *naming.NamingService, logger *zap.Logger) *NamingController {
	return &NamingController{
		namingService: namingService,
		logger:        logger,
	}
}

type TrainCorpusRequest struct {
	Corpus   string `json:"corpus" binding:"required"`
	Override bool   `json:"override"`
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, naming.ErrInvalidRequest),
		errors.Is(err, service.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	case errors.Is(err, naming.ErrIdentifierNotFound),
		errors.Is(err, naming.ErrCorpusNotConfigured),
		errors.Is(err, service.ErrRunnerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (nc *NamingController) respondError(c *gin.Context, message string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		nc.logger.Error(message, zap.Error(err))
	} else {
		nc.logger.Info(message, zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func (nc *NamingController) bindJSON(c *gin.Context, request any) bool {
	if err := c.ShouldBindJSON(request); err != nil {
		nc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func (nc *NamingController) SuggestNames(c *gin.Context) {
	var request naming.VariableRequest
	if !nc.bindJSON(c, &request) {
		return
	}

	nc.logger.Info("Suggesting names",
		zap.String("path", request.Path),
		zap.Int("line", request.Line),
		zap.Int("column", request.Column),
		zap.String("name", request.Name))

	response, err := nc.namingService.SuggestNames(c.Request.Context(), &request)
	if err != nil {
		nc.respondError(c, "Failed to suggest names", err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (nc *NamingController) NameProbability(c *gin.Context) {
	var request naming.VariableRequest
	if !nc.bindJSON(c, &request) {
		return
	}

	response, err := nc.namingService.NameProbability(c.Request.Context(), &request)
	if err != nil {
		nc.respondError(c, "Failed to compute name probability", err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (nc *NamingController) InspectFile(c *gin.Context) {
	var request naming.FileRequest
	if !nc.bindJSON(c, &request) {
		return
	}

	nc.logger.Info("Inspecting file", zap.String("path", request.Path))

	response, err := nc.namingService.InspectFile(c.Request.Context(), &request)
	if err != nil {
		nc.respondError(c, "Failed to inspect file", err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (nc *NamingController) TrainCorpus(c *gin.Context) {
	var request TrainCorpusRequest
	if !nc.bindJSON(c, &request) {
		return
	}

	nc.logger.Info("Training corpus",
		zap.String("corpus", request.Corpus),
		zap.Bool("override", request.Override))

	stats, err := nc.namingService.TrainCorpus(c.Request.Context(), request.Corpus, request.Override)
	if err != nil {
		nc.respondError(c, "Failed to train corpus", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (nc *NamingController) CorpusStats(c *gin.Context) {
	stats, err := nc.namingService.CorpusStats(c.Param("name"))
	if err != nil {
		nc.respondError(c, "Failed to get corpus stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (nc *NamingController) ListCorpora(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"corpora": nc.namingService.ListCorpora(),
	})
}
