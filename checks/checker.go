// Package checks implements the demo balance check behind /api/check: per-IP
// rate limiting, per-card-type code formats, used-code tracking and a check
// log.
package checks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-giftcard-verifier/models"

	"github.com/google/uuid"
)

const (
	StatusValid       = "valid"
	StatusInvalid     = "invalid"
	StatusUsed        = "used"
	StatusRateLimited = "rate_limited"
)

type Checker struct {
	store   Store
	limiter *RateLimiter
	now     func() time.Time
}

func NewChecker(store Store, limiter *RateLimiter) *Checker {
	return &Checker{store: store, limiter: limiter, now: time.Now}
}

// Check runs one balance check for the client at ip and returns the HTTP
// status with the response body. Store failures are returned as errors.
func (c *Checker) Check(ctx context.Context, ip string, req models.CheckRequest) (int, models.CheckResponse, error) {
	cardType := strings.TrimSpace(req.CardType)
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	resp := models.CheckResponse{Reference: newReference(), CheckedAt: nowISO(c.now())}

	if !c.limiter.Allow(ip) {
		limit, window := c.limiter.Limit()
		resp.Status = StatusRateLimited
		resp.Label = "Too many requests"
		resp.Message = fmt.Sprintf("Rate limit: max %d checks per %ds.", limit, int(window.Seconds()))
		slog.Warn("Check rate limited", "ip", ip)
		return c.finish(ctx, ip, cardType, code, http.StatusTooManyRequests, resp)
	}

	if !ValidCardType(cardType) {
		resp.Status, resp.Label, resp.Message = StatusInvalid, "Invalid", "Choose a valid card type."
		return c.finish(ctx, ip, cardType, code, http.StatusBadRequest, resp)
	}
	if code == "" {
		resp.Status, resp.Label, resp.Message = StatusInvalid, "Invalid", "Enter a code."
		return c.finish(ctx, ip, cardType, code, http.StatusBadRequest, resp)
	}

	resp.Ok = true
	if !MatchesFormat(cardType, code) {
		resp.Status, resp.Label, resp.Message = StatusInvalid, "Invalid", "Code format not recognized for this card type."
		return c.finish(ctx, ip, cardType, code, http.StatusOK, resp)
	}

	used, err := c.store.IsUsed(ctx, code)
	if err != nil {
		return 0, models.CheckResponse{}, fmt.Errorf("failed to look up code: %w", err)
	}
	if used {
		resp.Status, resp.Label, resp.Message = StatusUsed, "Used", "This code has already been checked and marked as used."
		return c.finish(ctx, ip, cardType, code, http.StatusOK, resp)
	}

	if !IsValid(code) {
		resp.Status, resp.Label, resp.Message = StatusInvalid, "Invalid", "Not recognized by rules."
		return c.finish(ctx, ip, cardType, code, http.StatusOK, resp)
	}

	resp.Status, resp.Label, resp.Message = StatusValid, "Verified", "Verification completed."
	resp.CardType = cardType
	resp.Balance = StableBalance(code)
	resp.Currency = Currency
	if err := c.store.MarkUsed(ctx, cardType, code, resp.Reference); err != nil {
		return 0, models.CheckResponse{}, fmt.Errorf("failed to mark code as used: %w", err)
	}
	return c.finish(ctx, ip, cardType, code, http.StatusOK, resp)
}

// finish writes the check log row for every outcome.
func (c *Checker) finish(ctx context.Context, ip, cardType, code string, status int, resp models.CheckResponse) (int, models.CheckResponse, error) {
	rec := LogRecord{
		IP:         ip,
		CardType:   cardType,
		CodeMasked: MaskCode(code),
		Status:     resp.Status,
		CheckedAt:  resp.CheckedAt,
		Reference:  resp.Reference,
	}
	if err := c.store.LogCheck(ctx, rec); err != nil {
		return 0, models.CheckResponse{}, fmt.Errorf("failed to log check: %w", err)
	}
	slog.Debug("Check completed", "card_type", cardType, "status", resp.Status, "reference", resp.Reference)
	return status, resp, nil
}

// newReference is a 10-character uppercase hex id.
func newReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// ClientIP prefers X-Forwarded-For (taken verbatim) over the remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
