package httpapi

import (
	"net/http"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// startWorkflowRequest is the POST /workflows body: an operator-chosen id
// plus the WorkflowConfig spec.md §3 says a Workflow carries for its
// lifetime.
type startWorkflowRequest struct {
	ID              string   `json:"id" binding:"required"`
	Chains          []uint64 `json:"chains" binding:"required,min=1"`
	Dexes           []string `json:"dexes" binding:"required,min=1"`
	ProtectionLevel string   `json:"protection_level" binding:"required,oneof=basic standard advanced maximum"`
	MinProfitUSD    string   `json:"min_profit_usd"`
}

func (s *Server) handleStartWorkflow(c *gin.Context) {
	var req startWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, coreerrors.Wrap(coreerrors.KindValidation, "decode start-workflow request", err))
		return
	}

	minProfit := decimal.Zero
	if req.MinProfitUSD != "" {
		parsed, err := decimal.NewFromString(req.MinProfitUSD)
		if err != nil {
			fail(c, coreerrors.Wrap(coreerrors.KindValidation, "parse min_profit_usd", err))
			return
		}
		minProfit = parsed
	}

	chains := make([]arbmodel.ChainID, 0, len(req.Chains))
	for _, id := range req.Chains {
		chains = append(chains, arbmodel.ChainID(id))
	}
	dexes := make([]arbmodel.DEX, 0, len(req.Dexes))
	for _, d := range req.Dexes {
		dexes = append(dexes, arbmodel.DEX(d))
	}

	cfg := arbmodel.WorkflowConfig{
		Chains:          chains,
		Dexes:           dexes,
		ProtectionLevel: req.ProtectionLevel,
		MinProfitUSD:    minProfit,
	}

	wf, err := s.coord.StartWorkflow(c.Request.Context(), req.ID, cfg)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, wf)
}

func (s *Server) handleStopWorkflow(c *gin.Context) {
	wf, err := s.coord.StopWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

func (s *Server) handleGetWorkflow(c *gin.Context) {
	wf, err := s.coord.GetWorkflowState(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}
