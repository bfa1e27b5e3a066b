package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boxoffice/internal/screening/scoring"
	"github.com/smallbiznis/boxoffice/pkg/db/pagination"
)

type Service interface {
	CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*Submission, error)
	GetSubmission(ctx context.Context, id snowflake.ID) (*Submission, error)
	UpdateSubmission(ctx context.Context, id snowflake.ID, req UpdateSubmissionRequest) (*Submission, error)
	ListSubmissions(ctx context.Context, req ListSubmissionsRequest) (ListSubmissionsResponse, error)
	Decide(ctx context.Context, req DecideRequest) (*Submission, error)

	// RecordReview upserts the reviewer's review and recomputes the score in
	// the same transaction; a failed recomputation discards the review.
	RecordReview(ctx context.Context, req RecordReviewRequest) (*Review, error)
	DeleteReview(ctx context.Context, submissionID snowflake.ID, reviewerID string) (bool, error)
	HasReviewed(ctx context.Context, submissionID snowflake.ID, reviewerID string) (bool, error)
	ListReviews(ctx context.Context, submissionID snowflake.ID, viewerID string, isStaff bool) ([]Review, error)

	RecalculateScore(ctx context.Context, submissionID snowflake.ID) (*Score, error)
	RefreshHotScores(ctx context.Context, limit int) (int, error)
	GetSubmissionSummary(ctx context.Context, id snowflake.ID) (*SubmissionSummary, error)
	ListRanked(ctx context.Context, req ListRankedRequest) ([]SubmissionSummary, error)

	CheckGenreMismatch(ctx context.Context, submissionID snowflake.ID) (bool, error)
	SetArtistGenres(ctx context.Context, artistID snowflake.ID, genres []string) ([]string, error)
	SetVenueRequiredGenres(ctx context.Context, venueID snowflake.ID, genres []string) ([]string, error)

	GetConfig(ctx context.Context) (scoring.Config, error)
	UpdateConfig(ctx context.Context, cfg scoring.Config, updatedBy string) (scoring.Config, error)
}

type CreateSubmissionRequest struct {
	ArtistID     string       `json:"artist_id"`
	RecordingURL string       `json:"recording_url"`
	Context      ContextInput `json:"context"`
	SubmittedBy  string       `json:"-"`
}

type UpdateSubmissionRequest struct {
	ArtistID *string       `json:"artist_id,omitempty"`
	Context  *ContextInput `json:"context,omitempty"`
}

type ListSubmissionsRequest struct {
	Status    SubmissionStatus
	PageToken string
	PageSize  int32
}

type ListSubmissionsResponse struct {
	Submissions []Submission        `json:"submissions"`
	PageInfo    pagination.PageInfo `json:"page_info"`
}

type DecideRequest struct {
	SubmissionID snowflake.ID     `json:"-"`
	Decision     SubmissionStatus `json:"decision"`
	DecidedBy    string           `json:"-"`
	Note         string           `json:"note"`
}

type RecordReviewRequest struct {
	SubmissionID          snowflake.ID `json:"-"`
	ReviewerID            string       `json:"-"`
	Rating                int32        `json:"rating"`
	ListenDurationSeconds int32        `json:"listen_duration_seconds"`
}

type RankOrder string

const (
	RankByHot     RankOrder = "hot"
	RankByIndexed RankOrder = "indexed"
)

type ListRankedRequest struct {
	Order   RankOrder
	Context *ContextInput
	Limit   int
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidArtist      = errors.New("invalid_artist")
	ErrInvalidRecording   = errors.New("invalid_recording_url")
	ErrInvalidContext     = errors.New("invalid_context")
	ErrInvalidReviewer    = errors.New("invalid_reviewer")
	ErrInvalidRating      = errors.New("invalid_rating")
	ErrInvalidListen      = errors.New("invalid_listen_duration")
	ErrListenTooShort     = errors.New("listen_duration_too_short")
	ErrInvalidDecision    = errors.New("invalid_decision")
	ErrInvalidRankOrder   = errors.New("invalid_rank_order")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
	ErrSubmissionNotFound = errors.New("submission_not_found")
	ErrAlreadyDecided     = errors.New("submission_already_decided")
	ErrConfigMissing      = errors.New("screening_config_missing")
	ErrScoreNotCalculated = errors.New("score_not_calculated")
)
