package leadpress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/brandvoice"
	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/generate"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/recommend"
	"github.com/eringen/leadpress/review"
)

type generatedPost struct {
	ID       string             `json:"id"`
	Slug     string             `json:"slug"`
	Title    string             `json:"title"`
	Category string             `json:"category"`
	Image    string             `json:"image"`
	Status   content.PostStatus `json:"status"`
}

type generateResponse struct {
	Success       bool           `json:"success"`
	Post          generatedPost  `json:"post"`
	Duplicate     bool           `json:"duplicate"`
	ImageFallback bool           `json:"imageFallback"`
	Review        *review.Result `json:"review,omitempty"`
}

func (a *App) handleGeneratePost(c echo.Context) error {
	if a.Generator == nil {
		return llm.ErrNoAPIKey
	}
	var req generate.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	res, err := a.Generator.Generate(c.Request().Context(), req)
	if err != nil {
		return fmt.Errorf("generate post: %w", err)
	}
	if !res.Duplicate {
		a.Cache.Invalidate()
	}
	p := res.Post
	return c.JSON(http.StatusOK, generateResponse{
		Success: true,
		Post: generatedPost{
			ID: p.ID, Slug: p.Slug, Title: p.Title, Category: p.Category, Image: p.Image, Status: p.Status,
		},
		Duplicate:     res.Duplicate,
		ImageFallback: res.ImageFallback,
		Review:        res.Review,
	})
}

func (a *App) handleBatchGenerate(c echo.Context) error {
	if a.Generator == nil {
		return llm.ErrNoAPIKey
	}
	var body struct {
		Topics []generate.Topic `json:"topics"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	report, err := a.Generator.BatchGenerate(c.Request().Context(), body.Topics)
	if err != nil {
		a.Logger.Warn("batch generate interrupted", zap.Error(err))
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, report)
}

type editorAgentRequest struct {
	BlogPostID      string   `json:"blogPostId"`
	Content         string   `json:"content"`
	Title           string   `json:"title"`
	Excerpt         string   `json:"excerpt"`
	MetaDescription string   `json:"metaDescription"`
	Tags            []string `json:"tags"`
}

type editorAgentResponse struct {
	Success bool          `json:"success"`
	Review  review.Result `json:"review"`
}

func (a *App) handleEditorAgent(c echo.Context) error {
	var req editorAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	req.BlogPostID = strings.TrimSpace(req.BlogPostID)
	req.Title = strings.TrimSpace(req.Title)
	if req.BlogPostID == "" || req.Title == "" || strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "blogPostId, content and title are required")
	}
	if a.Reviewer == nil {
		return llm.ErrNoAPIKey
	}
	res, err := a.Reviewer.ReviewPost(c.Request().Context(), review.Candidate{
		PostID:          req.BlogPostID,
		Title:           req.Title,
		Content:         req.Content,
		Excerpt:         req.Excerpt,
		MetaDescription: req.MetaDescription,
		Tags:            req.Tags,
	})
	if err != nil {
		return fmt.Errorf("editor agent %s: %w", req.BlogPostID, err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, editorAgentResponse{Success: true, Review: res})
}

func (a *App) handleBatchReview(c echo.Context) error {
	if a.Batch == nil {
		return llm.ErrNoAPIKey
	}
	var body struct {
		DryRun bool               `json:"dryRun"`
		Status content.PostStatus `json:"status"`
		Limit  int                `json:"limit"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if body.Status != "" && !body.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}
	report, err := a.Batch.Run(c.Request().Context(), review.BatchOptions{
		DryRun: body.DryRun,
		Status: body.Status,
		Limit:  body.Limit,
	})
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.Logger.Warn("batch review interrupted", zap.Error(err))
	case err != nil:
		return fmt.Errorf("batch review: %w", err)
	}
	if !body.DryRun {
		a.Cache.Invalidate()
	}
	return c.JSON(http.StatusOK, report)
}

func (a *App) handleRecommender(c echo.Context) error {
	var act recommend.Action
	if err := c.Bind(&act); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	name := strings.ToLower(strings.TrimSpace(act.Action))
	if (name == recommend.ActionApprove || name == recommend.ActionReject) && !a.hasServiceRole(c) && !IsAdmin(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	out, err := a.Recommender.Do(c.Request().Context(), act)
	switch {
	case errors.Is(err, recommend.ErrMissingID):
		return echo.NewHTTPError(http.StatusBadRequest, "recommendationId is required")
	case errors.Is(err, recommend.ErrUnknownAction):
		return echo.NewHTTPError(http.StatusBadRequest, "action must be one of: generate, get, approve, reject")
	case isNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "recommendation not found")
	case err != nil:
		return fmt.Errorf("analytics recommender %s: %w", name, err)
	}
	if rec, ok := out.(content.TopicRecommendation); ok {
		return c.JSON(http.StatusOK, map[string]any{"success": true, "recommendation": rec})
	}
	if recs, ok := out.([]content.TopicRecommendation); ok && recs == nil {
		out = []content.TopicRecommendation{}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "recommendations": out})
}

func (a *App) handleSyncSubstack(c echo.Context) error {
	if a.Syncer == nil {
		return llm.ErrNoAPIKey
	}
	var body struct {
		SubstackURL string `json:"substackUrl"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	profile, err := a.Syncer.Sync(c.Request().Context(), body.SubstackURL)
	switch {
	case errors.Is(err, brandvoice.ErrInvalidFeedURL):
		return echo.NewHTTPError(http.StatusBadRequest, "substackUrl is missing or invalid")
	case errors.Is(err, brandvoice.ErrEmptyFeed):
		return echo.NewHTTPError(http.StatusBadRequest, "the feed has no posts")
	case err != nil:
		return fmt.Errorf("sync substack: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "profile": profile})
}
