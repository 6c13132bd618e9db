package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const minScriptLength = 50

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// validateRequest enforces the boundary preconditions before the pipeline
// runs. The pipeline itself assumes a valid request.
func validateRequest(req *GenerateRequest) *PipelineError {
	if len(strings.TrimSpace(req.Script)) < minScriptLength {
		return validationError("script must be at least 50 characters")
	}
	if strings.TrimSpace(req.Gender) == "" {
		return validationError("gender is required")
	}
	if strings.TrimSpace(req.Age) == "" {
		return validationError("age is required")
	}
	// Product is optional in continuation mode only.
	if !req.ContinuationMode && strings.TrimSpace(req.Product) == "" {
		return validationError("product is required")
	}
	switch req.SettingMode {
	case "", SettingSingle, SettingHomeTour, SettingIndoorOutdoor, SettingAIInspired:
	default:
		return validationError("unknown settingMode: " + req.SettingMode)
	}
	if req.JSONFormat != "" && req.JSONFormat != FormatStandard && req.JSONFormat != FormatEnhanced {
		return validationError("jsonFormat must be standard or enhanced")
	}
	return nil
}

// statusForError maps the error taxonomy onto HTTP status codes:
// timeout 504, malformed output 502, validation 400, everything else 500.
func statusForError(err error) int {
	switch errKind(err) {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindMalformed:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(cfg *AppConfig, code string, err error) errorResponse {
	if cfg.IsDevelopment() {
		return errorResponse{Error: code, Message: err.Error()}
	}
	return errorResponse{Error: code, Message: "prompt generation failed"}
}

// handleGeneratePrompts validates the request, runs the pipeline under the
// route deadline, and writes exactly one response: whichever of the
// deadline or the pipeline finishes first wins, and the loser is dropped.
func handleGeneratePrompts(svc *SegmentService, cfg *AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "Invalid JSON request body"})
			return
		}
		if verr := validateRequest(&req); verr != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_failed", Message: verr.Op})
			return
		}

		requestID := uuid.New().String()[:8]
		log := logrus.WithField("request_id", requestID)
		log.Infof("generate-prompts accepted (%d chars of script)", len(req.Script))

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RouteDeadline)
		defer cancel()

		type outcome struct {
			result *RunResult
			err    error
		}
		// Buffered so a late pipeline completion never blocks after the
		// deadline response has been written.
		done := make(chan outcome, 1)

		go func() {
			result, err := svc.GenerateSegments(ctx, &req)
			done <- outcome{result: result, err: err}
		}()

		select {
		case <-ctx.Done():
			log.Warn("route deadline reached, abandoning pipeline run")
			c.JSON(http.StatusGatewayTimeout, errorBody(cfg, "route_timeout", ctx.Err()))
		case o := <-done:
			if o.err != nil {
				status := statusForError(o.err)
				log.Errorf("pipeline failed (%d): %v", status, o.err)
				c.JSON(status, errorBody(cfg, "generation_failed", o.err))
				return
			}
			log.Infof("run complete: %d segments, character %s",
				o.result.Metadata.TotalSegments, o.result.Metadata.CharacterID)
			c.JSON(http.StatusOK, o.result)
		}
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "Video Prompt Automation API",
	})
}
