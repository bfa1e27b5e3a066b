package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"github.com/smallbiznis/boxoffice/internal/screening/scoring"
)

type genresRequest struct {
	Genres []string `json:"genres"`
}

func (s *Server) CreateSubmission(c *gin.Context) {
	var req screeningdomain.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.ArtistID = strings.TrimSpace(req.ArtistID)
	req.RecordingURL = strings.TrimSpace(req.RecordingURL)
	req.SubmittedBy = userIDFromContext(c)

	resp, err := s.screeningSvc.CreateSubmission(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListSubmissions(c *gin.Context) {
	pageSize, err := parseOptionalInt(c.Query("page_size"), "page_size")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.screeningSvc.ListSubmissions(c.Request.Context(), screeningdomain.ListSubmissionsRequest{
		Status:    screeningdomain.SubmissionStatus(strings.TrimSpace(c.Query("status"))),
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  int32(pageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Submissions, "page_info": resp.PageInfo})
}

func (s *Server) ListRankedSubmissions(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"), "limit")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := screeningdomain.ListRankedRequest{
		Order: screeningdomain.RankOrder(strings.TrimSpace(c.Query("order"))),
		Limit: limit,
	}
	if contextType := strings.TrimSpace(c.Query("context_type")); contextType != "" {
		req.Context = &screeningdomain.ContextInput{
			Type:    screeningdomain.ContextType(contextType),
			EventID: strings.TrimSpace(c.Query("event_id")),
			VenueID: strings.TrimSpace(c.Query("venue_id")),
		}
	}

	resp, err := s.screeningSvc.ListRanked(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubmission(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.screeningSvc.GetSubmissionSummary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSubmission(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req screeningdomain.UpdateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	current, err := s.screeningSvc.GetSubmission(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if current.SubmittedBy != userIDFromContext(c) && !s.isStaff(c) {
		AbortWithError(c, ErrForbidden)
		return
	}

	resp, err := s.screeningSvc.UpdateSubmission(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordReview(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectReview, authorization.ActionReviewRecord) {
		return
	}

	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req screeningdomain.RecordReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SubmissionID = id
	req.ReviewerID = userIDFromContext(c)

	resp, err := s.screeningSvc.RecordReview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteReview(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	deleted, err := s.screeningSvc.DeleteReview(c.Request.Context(), id, userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !deleted {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListReviews(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.screeningSvc.ListReviews(c.Request.Context(), id, userIDFromContext(c), s.isStaff(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DecideSubmission(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectSubmission, authorization.ActionSubmissionDecide) {
		return
	}

	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req screeningdomain.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SubmissionID = id
	req.DecidedBy = userIDFromContext(c)
	req.Note = strings.TrimSpace(req.Note)

	resp, err := s.screeningSvc.Decide(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionSubmissionDecide, authorization.ObjectSubmission, id.String(), map[string]any{
		"decision": string(resp.Status),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetArtistGenres(c *gin.Context) {
	s.setGenres(c, s.screeningSvc.SetArtistGenres)
}

func (s *Server) SetVenueRequiredGenres(c *gin.Context) {
	s.setGenres(c, s.screeningSvc.SetVenueRequiredGenres)
}

func (s *Server) setGenres(c *gin.Context, set func(ctx context.Context, id snowflake.ID, genres []string) ([]string, error)) {
	if !s.authorize(c, authorization.ObjectGenre, authorization.ActionGenreManage) {
		return
	}

	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req genresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := set(c.Request.Context(), id, req.Genres)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionGenreManage, authorization.ObjectGenre, id.String(), map[string]any{
		"genres": resp,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetScreeningConfig(c *gin.Context) {
	resp, err := s.screeningSvc.GetConfig(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateScreeningConfig(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectScreeningConfig, authorization.ActionScreeningConfigUpdate) {
		return
	}

	var req scoring.Config
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.screeningSvc.UpdateConfig(c.Request.Context(), req, userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionScreeningConfigUpdate, authorization.ObjectScreeningConfig, "1", map[string]any{
		"half_life_days":          resp.HalfLifeDays,
		"decay_floor":             resp.DecayFloor,
		"min_listen_seconds":      resp.MinListenSeconds,
		"min_reviews_for_ranking": resp.MinReviewsForRanking,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
