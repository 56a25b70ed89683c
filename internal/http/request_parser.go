package http

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/core"
)

const tokenCookie = "bb_token"

var errNotANumber = errors.New("must be a whole number")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams reads year and month from the query, defaulting to the
// month of now. Present but non-numeric values are rejected; range checks
// are left to the ledger.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: now.Month()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, &core.ValidationError{Field: "year", Err: errNotANumber}
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, &core.ValidationError{Field: "month", Err: errNotANumber}
		}
		params.Month = time.Month(m)
	}
	return params, nil
}

// ParseLimit reads ?limit=. Absent means 0, which selects every entry.
func ParseLimit(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &core.ValidationError{Field: "limit", Err: errors.New("must be a non-negative whole number")}
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// tokenFromRequest looks for an identity token in the Authorization
// header, then the token query parameter, then the session cookie.
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if t := c.Query("token"); t != "" {
		return t
	}
	if t, err := c.Cookie(tokenCookie); err == nil {
		return t
	}
	return ""
}
