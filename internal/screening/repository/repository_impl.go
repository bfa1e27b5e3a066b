package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	dbpkg "github.com/smallbiznis/boxoffice/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const submissionColumns = `id, artist_id, recording_url, context_type, event_id, venue_id, status,
	submitted_by, decided_by, decided_at, decision_note, has_genre_mismatch, created_at, updated_at`

const reviewColumns = `id, submission_id, reviewer_id, rating, listen_duration_seconds, created_at, updated_at`

type repo struct{}

func Provide() screeningdomain.Repository {
	return &repo{}
}

func (r *repo) InsertSubmission(ctx context.Context, db *gorm.DB, s *screeningdomain.Submission) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO screening_submissions (`+submissionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.ArtistID,
		s.RecordingURL,
		s.ContextType,
		s.EventID,
		s.VenueID,
		s.Status,
		s.SubmittedBy,
		s.DecidedBy,
		s.DecidedAt,
		s.DecisionNote,
		s.HasGenreMismatch,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindSubmission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*screeningdomain.Submission, error) {
	return r.findSubmission(ctx, db, id, "")
}

func (r *repo) LockSubmission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*screeningdomain.Submission, error) {
	return r.findSubmission(ctx, db, id, dbpkg.ForUpdate(db))
}

func (r *repo) findSubmission(ctx context.Context, db *gorm.DB, id snowflake.ID, suffix string) (*screeningdomain.Submission, error) {
	var submission screeningdomain.Submission
	err := db.WithContext(ctx).Raw(
		`SELECT `+submissionColumns+` FROM screening_submissions WHERE id = ?`+suffix,
		id,
	).Scan(&submission).Error
	if err != nil {
		return nil, err
	}
	if submission.ID == 0 {
		return nil, nil
	}
	return &submission, nil
}

func (r *repo) UpdateSubmission(ctx context.Context, db *gorm.DB, s *screeningdomain.Submission) error {
	return db.WithContext(ctx).Exec(
		`UPDATE screening_submissions
		 SET artist_id = ?, context_type = ?, event_id = ?, venue_id = ?, status = ?,
		     decided_by = ?, decided_at = ?, decision_note = ?, has_genre_mismatch = ?, updated_at = ?
		 WHERE id = ?`,
		s.ArtistID,
		s.ContextType,
		s.EventID,
		s.VenueID,
		s.Status,
		s.DecidedBy,
		s.DecidedAt,
		s.DecisionNote,
		s.HasGenreMismatch,
		s.UpdatedAt,
		s.ID,
	).Error
}

func (r *repo) SetGenreMismatch(ctx context.Context, db *gorm.DB, id snowflake.ID, mismatch bool, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE screening_submissions SET has_genre_mismatch = ?, updated_at = ? WHERE id = ?`,
		mismatch, at, id,
	).Error
}

func (r *repo) ListSubmissions(ctx context.Context, db *gorm.DB, status screeningdomain.SubmissionStatus, afterID snowflake.ID, limit int) ([]*screeningdomain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM screening_submissions WHERE id > ?`
	args := []any{afterID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	var items []*screeningdomain.Submission
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListVenueSubmissionIDs returns venue-context submissions matching the artist
// or the venue. A zero id matches nothing on that side.
func (r *repo) ListVenueSubmissionIDs(ctx context.Context, db *gorm.DB, artistID, venueID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM screening_submissions
		 WHERE context_type = ? AND (artist_id = ? OR venue_id = ?)
		 ORDER BY id ASC`,
		screeningdomain.ContextVenue, artistID, venueID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) ListDecidedSubmissionIDs(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM screening_submissions
		 WHERE id > ? AND decided_at IS NOT NULL
		 ORDER BY id ASC LIMIT ?`,
		afterID, limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) UpsertReview(ctx context.Context, db *gorm.DB, review *screeningdomain.Review) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "reviewer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "listen_duration_seconds", "updated_at"}),
	}).Create(review).Error
}

func (r *repo) FindReview(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, reviewerID string) (*screeningdomain.Review, error) {
	var review screeningdomain.Review
	err := db.WithContext(ctx).Raw(
		`SELECT `+reviewColumns+` FROM screening_reviews WHERE submission_id = ? AND reviewer_id = ?`,
		submissionID, reviewerID,
	).Scan(&review).Error
	if err != nil {
		return nil, err
	}
	if review.ID == 0 {
		return nil, nil
	}
	return &review, nil
}

func (r *repo) DeleteReview(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, reviewerID string) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM screening_reviews WHERE submission_id = ? AND reviewer_id = ?`,
		submissionID, reviewerID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListReviews(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) ([]screeningdomain.Review, error) {
	var reviews []screeningdomain.Review
	err := db.WithContext(ctx).Raw(
		`SELECT `+reviewColumns+` FROM screening_reviews WHERE submission_id = ? ORDER BY created_at ASC, id ASC`,
		submissionID,
	).Scan(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *repo) ListRatings(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) ([]int, error) {
	var ratings []int
	err := db.WithContext(ctx).Raw(
		`SELECT rating FROM screening_reviews WHERE submission_id = ? ORDER BY id ASC`,
		submissionID,
	).Scan(&ratings).Error
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

func (r *repo) UpsertScore(ctx context.Context, db *gorm.DB, score *screeningdomain.Score) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"review_count", "mean_rating", "confidence", "adjusted_score", "decay",
			"hot_score", "indexed_score", "hot_indexed_score", "calculated_at",
		}),
	}).Create(score).Error
}

func (r *repo) FindScore(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) (*screeningdomain.Score, error) {
	var score screeningdomain.Score
	err := db.WithContext(ctx).Raw(
		`SELECT submission_id, review_count, mean_rating, confidence, adjusted_score, decay,
		        hot_score, indexed_score, hot_indexed_score, calculated_at
		 FROM screening_scores WHERE submission_id = ?`,
		submissionID,
	).Scan(&score).Error
	if err != nil {
		return nil, err
	}
	if score.SubmissionID == 0 {
		return nil, nil
	}
	return &score, nil
}

type rankedRow struct {
	screeningdomain.Submission
	ReviewCount     int32
	IndexedScore    int32
	HotIndexedScore int32
}

func (r *repo) ListRanked(ctx context.Context, db *gorm.DB, filter screeningdomain.RankFilter) ([]screeningdomain.SubmissionSummary, error) {
	query := `SELECT s.id, s.artist_id, s.recording_url, s.context_type, s.event_id, s.venue_id, s.status,
		s.submitted_by, s.decided_by, s.decided_at, s.decision_note, s.has_genre_mismatch, s.created_at, s.updated_at,
		sc.review_count, sc.indexed_score, sc.hot_indexed_score
		FROM screening_submissions s
		JOIN screening_scores sc ON sc.submission_id = s.id
		WHERE sc.review_count >= ?`
	args := []any{filter.MinReviews}
	if filter.ContextType != "" {
		query += ` AND s.context_type = ?`
		args = append(args, filter.ContextType)
	}
	if filter.EventID != nil {
		query += ` AND s.event_id = ?`
		args = append(args, *filter.EventID)
	}
	if filter.VenueID != nil {
		query += ` AND s.venue_id = ?`
		args = append(args, *filter.VenueID)
	}
	if filter.Order == screeningdomain.RankByIndexed {
		query += ` ORDER BY sc.indexed_score DESC, sc.adjusted_score DESC, s.id ASC`
	} else {
		query += ` ORDER BY sc.hot_indexed_score DESC, sc.hot_score DESC, s.id ASC`
	}
	query += ` LIMIT ?`
	args = append(args, filter.Limit)

	var rows []rankedRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]screeningdomain.SubmissionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, screeningdomain.SubmissionSummary{
			Submission:      row.Submission,
			ReviewCount:     row.ReviewCount,
			IndexedScore:    row.IndexedScore,
			HotIndexedScore: row.HotIndexedScore,
		})
	}
	return out, nil
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB) (*screeningdomain.ConfigRecord, error) {
	var record screeningdomain.ConfigRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, settings, updated_by, updated_at FROM screening_config WHERE id = 1`,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) SaveConfig(ctx context.Context, db *gorm.DB, record *screeningdomain.ConfigRecord) error {
	record.ID = 1
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"settings", "updated_by", "updated_at"}),
	}).Create(record).Error
}

func (r *repo) ReplaceArtistGenres(ctx context.Context, db *gorm.DB, artistID snowflake.ID, genres []string) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM artist_genres WHERE artist_id = ?`, artistID).Error; err != nil {
		return err
	}
	if len(genres) == 0 {
		return nil
	}
	rows := make([]screeningdomain.ArtistGenre, 0, len(genres))
	for _, g := range genres {
		rows = append(rows, screeningdomain.ArtistGenre{ArtistID: artistID, Genre: g})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *repo) ListArtistGenres(ctx context.Context, db *gorm.DB, artistID snowflake.ID) ([]string, error) {
	var genres []string
	err := db.WithContext(ctx).Raw(
		`SELECT genre FROM artist_genres WHERE artist_id = ? ORDER BY genre ASC`,
		artistID,
	).Scan(&genres).Error
	if err != nil {
		return nil, err
	}
	return genres, nil
}

func (r *repo) ReplaceVenueGenres(ctx context.Context, db *gorm.DB, venueID snowflake.ID, genres []string) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM venue_required_genres WHERE venue_id = ?`, venueID).Error; err != nil {
		return err
	}
	if len(genres) == 0 {
		return nil
	}
	rows := make([]screeningdomain.VenueRequiredGenre, 0, len(genres))
	for _, g := range genres {
		rows = append(rows, screeningdomain.VenueRequiredGenre{VenueID: venueID, Genre: g})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *repo) ListVenueGenres(ctx context.Context, db *gorm.DB, venueID snowflake.ID) ([]string, error) {
	var genres []string
	err := db.WithContext(ctx).Raw(
		`SELECT genre FROM venue_required_genres WHERE venue_id = ? ORDER BY genre ASC`,
		venueID,
	).Scan(&genres).Error
	if err != nil {
		return nil, err
	}
	return genres, nil
}
