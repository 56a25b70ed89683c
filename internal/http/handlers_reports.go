package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/export"
	"budgetbuddy/internal/log"
)

func (s *Server) handleSummary(c *gin.Context) {
	Success(c, s.deps.Ledger.Summary())
}

func (s *Server) handleMonthlyReport(c *gin.Context) {
	params, err := ParseMonthParams(c.Request.URL.Query(), s.deps.Now().In(s.deps.Location))
	if err != nil {
		Fail(c, err)
		return
	}
	report, err := s.deps.Ledger.MonthlyReport(params.Year, params.Month)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, report)
}

func (s *Server) handleBudgets(c *gin.Context) {
	kind, err := core.ParseBudgetKind(c.Param("kind"))
	if err != nil {
		Fail(c, err)
		return
	}
	state := s.deps.Ledger.Snapshot()
	budgets := state.ExpenseBudgets
	if kind == core.BorrowingBudget {
		budgets = state.BorrowingLimits
	}
	Success(c, gin.H{
		"kind":    kind,
		"budgets": budgets,
		"lines":   s.deps.Ledger.BudgetLines(kind),
	})
}

type budgetRequest struct {
	Limit core.Amount `json:"limit"`
}

func (s *Server) handleSetBudget(c *gin.Context) {
	kind, err := core.ParseBudgetKind(c.Param("kind"))
	if err != nil {
		Fail(c, err)
		return
	}
	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	category := sanitizeInput(c.Param("category"))
	if err := s.deps.Ledger.SetBudget(c.Request.Context(), kind, category, req.Limit); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"kind": kind, "category": category, "limit": req.Limit})
}

func (s *Server) handleRemoveBudget(c *gin.Context) {
	kind, err := core.ParseBudgetKind(c.Param("kind"))
	if err != nil {
		Fail(c, err)
		return
	}
	category := sanitizeInput(c.Param("category"))
	if err := s.deps.Ledger.RemoveBudget(c.Request.Context(), kind, category); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"kind": kind, "removed": category})
}

// handleExport renders the whole ledger, newest first, as an xlsx download.
func (s *Server) handleExport(c *gin.Context) {
	state := s.deps.Ledger.Snapshot()
	records := s.deps.Ledger.Recent(0)

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, records, state.Preferences.Currency, s.deps.Location); err != nil {
		s.logger.ErrorContext(c.Request.Context(), "Export failed", log.FieldError, err)
		Fail(c, err)
		return
	}

	name := export.FileName(s.deps.Now().In(s.deps.Location))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
