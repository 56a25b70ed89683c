package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/search"
	"budgetbuddy/internal/services"
)

func (s *Server) handleListTransactions(c *gin.Context) {
	limit, err := ParseLimit(c.Request.URL.Query())
	if err != nil {
		Fail(c, err)
		return
	}
	records := s.deps.Ledger.Recent(limit)
	Success(c, gin.H{
		"transactions": records,
		"count":        len(records),
	})
}

func (s *Server) handleAddTransaction(c *gin.Context) {
	var in services.NewTransaction
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	in.Nature = sanitizeInput(in.Nature)
	in.CustomNature = sanitizeInput(in.CustomNature)

	rec, err := s.deps.Ledger.AddTransaction(c.Request.Context(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	s.logger.InfoContext(c.Request.Context(), "Transaction created",
		log.NewFields().WithRecord(rec.ID, string(rec.Type), rec.Nature, rec.Amount.String()).ToSlice()...)
	SuccessStatus(c, http.StatusCreated, rec)
}

func (s *Server) handleEditTransaction(c *gin.Context) {
	var edit services.TransactionEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if edit.Nature != nil {
		v := sanitizeInput(*edit.Nature)
		edit.Nature = &v
	}
	if edit.CustomNature != nil {
		v := sanitizeInput(*edit.CustomNature)
		edit.CustomNature = &v
	}

	rec, err := s.deps.Ledger.EditTransaction(c.Request.Context(), c.Param("id"), edit)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, rec)
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Ledger.DeleteTransaction(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"deleted": id})
}

func (s *Server) handleSearch(c *gin.Context) {
	q := search.Query{
		Text: sanitizeInput(c.Query("q")),
		Day:  strings.TrimSpace(c.Query("date")),
	}
	entries := s.deps.Ledger.Search(q)
	Success(c, gin.H{
		"transactions": search.Records(entries),
		"count":        len(entries),
	})
}

// liveSearchUpdate carries the fields of the live query that changed.
type liveSearchUpdate struct {
	Q    *string `json:"q"`
	Date *string `json:"date"`
}

// handleLiveSearchUpdate feeds keystrokes to the debounced live search.
// Text results settle after the debounce delay; GET returns them.
func (s *Server) handleLiveSearchUpdate(c *gin.Context) {
	var req liveSearchUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Q == nil && req.Date == nil {
		BadRequest(c, "q or date is required")
		return
	}
	if req.Date != nil {
		s.deps.Ledger.SetSearchDay(strings.TrimSpace(*req.Date))
	}
	if req.Q != nil {
		s.deps.Ledger.TypeSearch(sanitizeInput(*req.Q))
	}
	q, _ := s.deps.Ledger.LiveSearch()
	SuccessStatus(c, http.StatusAccepted, gin.H{"query": q})
}

func (s *Server) handleLiveSearch(c *gin.Context) {
	q, entries := s.deps.Ledger.LiveSearch()
	Success(c, gin.H{
		"query":        q,
		"transactions": search.Records(entries),
		"count":        len(entries),
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	t, ok := core.ParseTransactionType(c.Param("type"))
	if !ok {
		Fail(c, &core.ValidationError{Field: "type", Err: core.ErrInvalidType})
		return
	}
	Success(c, gin.H{
		"type":       t,
		"categories": core.NatureOptions(t),
	})
}
