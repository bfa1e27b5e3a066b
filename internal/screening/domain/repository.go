package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertSubmission(ctx context.Context, db *gorm.DB, submission *Submission) error
	FindSubmission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Submission, error)
	LockSubmission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Submission, error)
	UpdateSubmission(ctx context.Context, db *gorm.DB, submission *Submission) error
	SetGenreMismatch(ctx context.Context, db *gorm.DB, id snowflake.ID, mismatch bool, at time.Time) error
	ListSubmissions(ctx context.Context, db *gorm.DB, status SubmissionStatus, afterID snowflake.ID, limit int) ([]*Submission, error)
	ListVenueSubmissionIDs(ctx context.Context, db *gorm.DB, artistID, venueID snowflake.ID) ([]snowflake.ID, error)
	ListDecidedSubmissionIDs(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error)

	UpsertReview(ctx context.Context, db *gorm.DB, review *Review) error
	FindReview(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, reviewerID string) (*Review, error)
	DeleteReview(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, reviewerID string) (int64, error)
	ListReviews(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) ([]Review, error)
	ListRatings(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) ([]int, error)

	UpsertScore(ctx context.Context, db *gorm.DB, score *Score) error
	FindScore(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) (*Score, error)
	ListRanked(ctx context.Context, db *gorm.DB, filter RankFilter) ([]SubmissionSummary, error)

	FindConfig(ctx context.Context, db *gorm.DB) (*ConfigRecord, error)
	SaveConfig(ctx context.Context, db *gorm.DB, record *ConfigRecord) error

	ReplaceArtistGenres(ctx context.Context, db *gorm.DB, artistID snowflake.ID, genres []string) error
	ListArtistGenres(ctx context.Context, db *gorm.DB, artistID snowflake.ID) ([]string, error)
	ReplaceVenueGenres(ctx context.Context, db *gorm.DB, venueID snowflake.ID, genres []string) error
	ListVenueGenres(ctx context.Context, db *gorm.DB, venueID snowflake.ID) ([]string, error)
}

// RankFilter selects ranked submissions. A zero ContextType matches every context.
type RankFilter struct {
	Order       RankOrder
	ContextType ContextType
	EventID     *snowflake.ID
	VenueID     *snowflake.ID
	MinReviews  int
	Limit       int
}
