package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

type Submission struct {
	ID               snowflake.ID     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ArtistID         snowflake.ID     `json:"artist_id" gorm:"column:artist_id;not null;index"`
	RecordingURL     string           `json:"recording_url" gorm:"type:text;not null"`
	ContextType      ContextType      `json:"context_type" gorm:"type:text;not null;index"`
	EventID          *snowflake.ID    `json:"event_id,omitempty" gorm:"column:event_id;index"`
	VenueID          *snowflake.ID    `json:"venue_id,omitempty" gorm:"column:venue_id;index"`
	Status           SubmissionStatus `json:"status" gorm:"type:text;not null;index"`
	SubmittedBy      string           `json:"submitted_by" gorm:"type:text;not null"`
	DecidedBy        *string          `json:"decided_by,omitempty" gorm:"type:text"`
	DecidedAt        *time.Time       `json:"decided_at,omitempty"`
	DecisionNote     *string          `json:"decision_note,omitempty" gorm:"type:text"`
	HasGenreMismatch bool             `json:"has_genre_mismatch" gorm:"not null;default:false"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"not null"`
}

func (Submission) TableName() string { return "screening_submissions" }

func (s Submission) Context() (Context, error) {
	return ContextFromColumns(s.ContextType, s.EventID, s.VenueID)
}

type Review struct {
	ID                    snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	SubmissionID          snowflake.ID `json:"submission_id" gorm:"column:submission_id;not null;uniqueIndex:ux_screening_reviews_submission_reviewer"`
	ReviewerID            string       `json:"reviewer_id" gorm:"type:text;not null;uniqueIndex:ux_screening_reviews_submission_reviewer"`
	Rating                int32        `json:"rating" gorm:"not null;check:chk_screening_reviews_rating,rating BETWEEN 1 AND 10"`
	ListenDurationSeconds int32        `json:"listen_duration_seconds" gorm:"not null;check:chk_screening_reviews_listen,listen_duration_seconds >= 0"`
	CreatedAt             time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt             time.Time    `json:"updated_at" gorm:"not null"`
}

func (Review) TableName() string { return "screening_reviews" }

// Score is written only by score recalculation.
type Score struct {
	SubmissionID    snowflake.ID `json:"submission_id" gorm:"primaryKey;autoIncrement:false"`
	ReviewCount     int32        `json:"review_count" gorm:"not null"`
	MeanRating      float64      `json:"mean_rating" gorm:"not null"`
	Confidence      float64      `json:"confidence" gorm:"not null"`
	AdjustedScore   float64      `json:"adjusted_score" gorm:"not null"`
	Decay           float64      `json:"decay" gorm:"not null"`
	HotScore        float64      `json:"hot_score" gorm:"not null"`
	IndexedScore    int32        `json:"indexed_score" gorm:"not null;index"`
	HotIndexedScore int32        `json:"hot_indexed_score" gorm:"not null;index"`
	CalculatedAt    time.Time    `json:"calculated_at" gorm:"not null"`
}

func (Score) TableName() string { return "screening_scores" }

// ConfigRecord is the single stored scoring configuration; ID is always 1.
type ConfigRecord struct {
	ID        int16          `gorm:"primaryKey;autoIncrement:false;check:chk_screening_config_singleton,id = 1"`
	Settings  datatypes.JSON `gorm:"not null"`
	UpdatedBy string         `gorm:"type:text;not null;default:''"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (ConfigRecord) TableName() string { return "screening_config" }

type VenueRequiredGenre struct {
	VenueID snowflake.ID `json:"venue_id" gorm:"primaryKey;autoIncrement:false"`
	Genre   string       `json:"genre" gorm:"primaryKey;type:varchar(64)"`
}

func (VenueRequiredGenre) TableName() string { return "venue_required_genres" }

type ArtistGenre struct {
	ArtistID snowflake.ID `json:"artist_id" gorm:"primaryKey;autoIncrement:false"`
	Genre    string       `json:"genre" gorm:"primaryKey;type:varchar(64)"`
}

func (ArtistGenre) TableName() string { return "artist_genres" }

// SubmissionSummary is the read view of a submission and its ranking.
type SubmissionSummary struct {
	Submission      Submission `json:"submission"`
	ReviewCount     int32      `json:"review_count"`
	IndexedScore    int32      `json:"indexed_score"`
	HotIndexedScore int32      `json:"hot_indexed_score"`
}
