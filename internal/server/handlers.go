package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/jsonfix"
	"github.com/qgenlab/qgen/internal/metrics"
)

const windowBytes = 40

type recoverRequest struct {
	Raw string `json:"raw"`
}

type recoverResponse struct {
	Value     any    `json:"value"`
	Candidate string `json:"candidate"`
	Repaired  bool   `json:"repaired"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Offset  *int64 `json:"offset,omitempty"`
	Window  string `json:"window,omitempty"`
}

// POST /v1/recover
func (s *Server) recoverJSON(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: err.Error()})
		return
	}

	rec, err := jsonfix.Recover(req.Raw)
	if err != nil {
		var recErr *jsonfix.RecoveryError
		switch {
		case errors.As(err, &recErr):
			s.metrics.ObserveRecovery(metrics.OutcomeFailed)
			off := recErr.Offset
			c.JSON(http.StatusUnprocessableEntity, errorResponse{
				Kind:    "recovery_failed",
				Message: recErr.Message,
				Offset:  &off,
				Window:  recErr.Window(windowBytes),
			})
		default:
			s.metrics.ObserveRecovery(metrics.OutcomeNoJSON)
			c.JSON(http.StatusUnprocessableEntity, errorResponse{Kind: "extraction_failed", Message: err.Error()})
		}
		return
	}

	outcome := metrics.OutcomeStrict
	if rec.Repaired {
		outcome = metrics.OutcomeRepaired
	}
	s.metrics.ObserveRecovery(outcome)
	c.JSON(http.StatusOK, recoverResponse{Value: rec.Value, Candidate: rec.Candidate, Repaired: rec.Repaired})
}

type generateRequest struct {
	Mode   string          `json:"mode"`
	Params json.RawMessage `json:"params"`
}

// POST /v1/generate
func (s *Server) generateQuestions(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: err.Error()})
		return
	}
	if req.Mode == "" {
		req.Mode = "chain"
	}
	switch req.Mode {
	case "single", "chain", "rubric":
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: "mode must be single, chain or rubric"})
		return
	}
	if len(req.Params) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: "params is required"})
		return
	}

	params, err := config.ParseParamsJSON(req.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_params", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	doc, summary, err := s.generate(ctx, req.Mode, params)
	if err != nil {
		s.logger.Error("generation failed", "mode", req.Mode, "subject", params.Subject, "error", err)
		c.JSON(http.StatusBadGateway, errorResponse{Kind: "generation_failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary, "result": doc})
}
