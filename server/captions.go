package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"captionkit/ai"
	"captionkit/caption"
	"captionkit/quota"
)

// Error codes in the JSON error envelope.
const (
	codeInvalidRequest = "invalid_request"
	codeQuotaExceeded  = "quota_exceeded"
	codeQuotaStore     = "quota_unavailable"
	codeUpstreamBusy   = "upstream_unavailable"
	codeUpstreamFailed = "upstream_failed"
)

type generateRequest struct {
	Platform string `json:"platform" binding:"required"`
	Tone     string `json:"tone" binding:"required"`
	Niche    string `json:"niche" binding:"required"`
	Goal     string `json:"goal" binding:"required"`
	PostIdea string `json:"postIdea"`
}

func (r generateRequest) caption() caption.Request {
	return caption.Request{
		Platform: r.Platform,
		Tone:     r.Tone,
		Niche:    r.Niche,
		Goal:     r.Goal,
		PostIdea: r.PostIdea,
	}.Normalize()
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": msg})
}

func (s *Server) generateCaptions(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	req := body.caption()
	if err := req.Validate(); err != nil {
		fail(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	user := c.GetString(userKey)
	limit := s.counter.Limit()

	// The slot is taken before the writer runs and given back if it fails.
	total, ok, err := s.counter.Reserve(ctx, user)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusServiceUnavailable, codeQuotaStore, "could not read your usage, try again shortly")
		return
	}
	if !ok {
		fail(c, http.StatusTooManyRequests, codeQuotaExceeded, quota.Message(limit))
		return
	}

	captions, err := s.writer.WriteCaptions(ctx, ai.BuildPrompt(req))
	if err != nil {
		_ = c.Error(err)
		if rerr := s.counter.Release(context.WithoutCancel(ctx), user); rerr != nil {
			s.log.Warn("failed to release quota reservation", "user", user, "error", rerr)
		}
		if caption.Classify(err) {
			fail(c, http.StatusServiceUnavailable, codeUpstreamBusy, "the caption writer is busy, try again")
			return
		}
		fail(c, http.StatusBadGateway, codeUpstreamFailed, "the caption writer failed")
		return
	}

	remaining := limit - total
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, caption.Response{
		Captions:          captions,
		RequestsRemaining: remaining,
	})
}
