package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/boxoffice/internal/cache"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/events"
	"github.com/smallbiznis/boxoffice/internal/observability/logger"
	"github.com/smallbiznis/boxoffice/internal/observability/metrics"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"github.com/smallbiznis/boxoffice/internal/screening/scoring"
	"github.com/smallbiznis/boxoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	configCacheKey = "current"
	configCacheTTL = time.Minute

	defaultPageSize    = 50
	maxPageSize        = 250
	defaultRankLimit   = 20
	maxRankLimit       = 100
	defaultHotBatch    = 200
	maxRecordingURLLen = 2048
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      screeningdomain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
	Publisher events.Publisher `optional:"true"`
	Redis     *redis.Client    `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      screeningdomain.Repository
	metrics   *metrics.Metrics
	publisher events.Publisher
	redis     *redis.Client
	config    cache.Cache[string, scoring.Config]
	// configGen changes on every invalidation so a load that started
	// before it never re-caches the old row.
	configGen atomic.Uint64
}

func New(p Params) screeningdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("screening.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		metrics:   p.Metrics,
		publisher: p.Publisher,
		redis:     p.Redis,
		config:    cache.NewTTLCache[string, scoring.Config](),
	}
}

func (s *Service) CreateSubmission(ctx context.Context, req screeningdomain.CreateSubmissionRequest) (*screeningdomain.Submission, error) {
	artistID, err := parseID(req.ArtistID)
	if err != nil {
		return nil, screeningdomain.ErrInvalidArtist
	}
	recording := strings.TrimSpace(req.RecordingURL)
	if recording == "" || len(recording) > maxRecordingURLLen {
		return nil, screeningdomain.ErrInvalidRecording
	}
	submittedBy := strings.TrimSpace(req.SubmittedBy)
	if submittedBy == "" {
		return nil, screeningdomain.ErrInvalidReviewer
	}
	subCtx, err := screeningdomain.ParseContext(req.Context)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	contextType, eventID, venueID := screeningdomain.ContextColumns(subCtx)
	submission := screeningdomain.Submission{
		ID:           s.genID.Generate(),
		ArtistID:     artistID,
		RecordingURL: recording,
		ContextType:  contextType,
		EventID:      eventID,
		VenueID:      venueID,
		Status:       screeningdomain.StatusPending,
		SubmittedBy:  submittedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mismatch, err := s.genreMismatch(ctx, tx, &submission)
		if err != nil {
			return err
		}
		submission.HasGenreMismatch = mismatch
		if err := s.repo.InsertSubmission(ctx, tx, &submission); err != nil {
			return err
		}
		cfg, err := s.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		_, err = s.recalculate(ctx, tx, &submission, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("submission created",
		zap.String("submission_id", submission.ID.String()),
		zap.String("context_type", string(submission.ContextType)),
		zap.Bool("genre_mismatch", submission.HasGenreMismatch),
	)
	return &submission, nil
}

func (s *Service) GetSubmission(ctx context.Context, id snowflake.ID) (*screeningdomain.Submission, error) {
	if id == 0 {
		return nil, screeningdomain.ErrInvalidID
	}
	submission, err := s.repo.FindSubmission(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, screeningdomain.ErrSubmissionNotFound
	}
	return submission, nil
}

// UpdateSubmission changes the artist or context of a pending submission and
// re-evaluates its genre mismatch flag.
func (s *Service) UpdateSubmission(ctx context.Context, id snowflake.ID, req screeningdomain.UpdateSubmissionRequest) (*screeningdomain.Submission, error) {
	if id == 0 {
		return nil, screeningdomain.ErrInvalidID
	}
	var artistID snowflake.ID
	if req.ArtistID != nil {
		parsed, err := parseID(*req.ArtistID)
		if err != nil {
			return nil, screeningdomain.ErrInvalidArtist
		}
		artistID = parsed
	}
	var subCtx screeningdomain.Context
	if req.Context != nil {
		parsed, err := screeningdomain.ParseContext(*req.Context)
		if err != nil {
			return nil, err
		}
		subCtx = parsed
	}

	var out *screeningdomain.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.lockSubmission(ctx, tx, id)
		if err != nil {
			return err
		}
		if submission.Status != screeningdomain.StatusPending {
			return screeningdomain.ErrAlreadyDecided
		}
		if artistID != 0 {
			submission.ArtistID = artistID
		}
		if subCtx != nil {
			submission.ContextType, submission.EventID, submission.VenueID = screeningdomain.ContextColumns(subCtx)
		}
		mismatch, err := s.genreMismatch(ctx, tx, submission)
		if err != nil {
			return err
		}
		submission.HasGenreMismatch = mismatch
		submission.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateSubmission(ctx, tx, submission); err != nil {
			return err
		}
		out = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListSubmissions(ctx context.Context, req screeningdomain.ListSubmissionsRequest) (screeningdomain.ListSubmissionsResponse, error) {
	switch req.Status {
	case "", screeningdomain.StatusPending, screeningdomain.StatusApproved, screeningdomain.StatusRejected:
	default:
		return screeningdomain.ListSubmissionsResponse{}, screeningdomain.ErrInvalidDecision
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	pageSize := page.Size(defaultPageSize, maxPageSize)

	var afterID snowflake.ID
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return screeningdomain.ListSubmissionsResponse{}, screeningdomain.ErrInvalidPageToken
	}
	if cursor != nil {
		afterID = cursor.ID
	}

	items, err := s.repo.ListSubmissions(ctx, s.db, req.Status, afterID, pageSize+1)
	if err != nil {
		return screeningdomain.ListSubmissionsResponse{}, err
	}
	items, pageInfo := pagination.Page(items, pageSize, func(sub *screeningdomain.Submission) pagination.Cursor {
		return pagination.Cursor{ID: sub.ID}
	})

	submissions := make([]screeningdomain.Submission, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		submissions = append(submissions, *item)
	}
	return screeningdomain.ListSubmissionsResponse{Submissions: submissions, PageInfo: pageInfo}, nil
}

// Decide moves a pending submission to approved or rejected exactly once.
func (s *Service) Decide(ctx context.Context, req screeningdomain.DecideRequest) (*screeningdomain.Submission, error) {
	if req.SubmissionID == 0 {
		return nil, screeningdomain.ErrInvalidID
	}
	if req.Decision != screeningdomain.StatusApproved && req.Decision != screeningdomain.StatusRejected {
		return nil, screeningdomain.ErrInvalidDecision
	}
	decidedBy := strings.TrimSpace(req.DecidedBy)
	if decidedBy == "" {
		return nil, screeningdomain.ErrInvalidReviewer
	}

	var out *screeningdomain.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.lockSubmission(ctx, tx, req.SubmissionID)
		if err != nil {
			return err
		}
		if submission.Status != screeningdomain.StatusPending {
			return screeningdomain.ErrAlreadyDecided
		}

		now := s.clock.Now()
		submission.Status = req.Decision
		submission.DecidedBy = &decidedBy
		submission.DecidedAt = &now
		if note := strings.TrimSpace(req.Note); note != "" {
			submission.DecisionNote = &note
		}
		submission.UpdatedAt = now
		if err := s.repo.UpdateSubmission(ctx, tx, submission); err != nil {
			return err
		}

		cfg, err := s.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := s.recalculate(ctx, tx, submission, cfg); err != nil {
			return err
		}
		out = submission
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("submission decided",
		zap.String("submission_id", out.ID.String()),
		zap.String("status", string(out.Status)),
	)
	events.PublishBestEffort(ctx, s.publisher, s.log, events.RoutingSubmissionDecided, map[string]any{
		"submission_id": out.ID.String(),
		"artist_id":     out.ArtistID.String(),
		"status":        string(out.Status),
		"decided_by":    decidedBy,
	})
	return out, nil
}

func (s *Service) RecordReview(ctx context.Context, req screeningdomain.RecordReviewRequest) (*screeningdomain.Review, error) {
	if req.SubmissionID == 0 {
		return nil, screeningdomain.ErrInvalidID
	}
	reviewerID := strings.TrimSpace(req.ReviewerID)
	if reviewerID == "" {
		return nil, screeningdomain.ErrInvalidReviewer
	}
	if req.Rating < 1 || req.Rating > 10 {
		return nil, screeningdomain.ErrInvalidRating
	}
	if req.ListenDurationSeconds < 0 {
		return nil, screeningdomain.ErrInvalidListen
	}

	var (
		out         *screeningdomain.Review
		contextType screeningdomain.ContextType
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.lockSubmission(ctx, tx, req.SubmissionID)
		if err != nil {
			return err
		}
		cfg, err := s.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if int(req.ListenDurationSeconds) < cfg.MinListenSeconds {
			return screeningdomain.ErrListenTooShort
		}

		now := s.clock.Now()
		review := screeningdomain.Review{
			ID:                    s.genID.Generate(),
			SubmissionID:          submission.ID,
			ReviewerID:            reviewerID,
			Rating:                req.Rating,
			ListenDurationSeconds: req.ListenDurationSeconds,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := s.repo.UpsertReview(ctx, tx, &review); err != nil {
			return err
		}
		if _, err := s.recalculate(ctx, tx, submission, cfg); err != nil {
			return err
		}

		stored, err := s.repo.FindReview(ctx, tx, submission.ID, reviewerID)
		if err != nil {
			return err
		}
		if stored == nil {
			stored = &review
		}
		out = stored
		contextType = submission.ContextType
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReview(ctx, string(contextType))
	logger.WithContext(ctx, s.log).Info("review recorded",
		zap.String("submission_id", req.SubmissionID.String()),
		zap.Int32("rating", out.Rating),
	)
	return out, nil
}

func (s *Service) DeleteReview(ctx context.Context, submissionID snowflake.ID, reviewerID string) (bool, error) {
	if submissionID == 0 {
		return false, screeningdomain.ErrInvalidID
	}
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return false, screeningdomain.ErrInvalidReviewer
	}

	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.lockSubmission(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		rows, err := s.repo.DeleteReview(ctx, tx, submissionID, reviewerID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		deleted = true
		cfg, err := s.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		_, err = s.recalculate(ctx, tx, submission, cfg)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *Service) HasReviewed(ctx context.Context, submissionID snowflake.ID, reviewerID string) (bool, error) {
	if submissionID == 0 {
		return false, screeningdomain.ErrInvalidID
	}
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return false, nil
	}
	review, err := s.repo.FindReview(ctx, s.db, submissionID, reviewerID)
	if err != nil {
		return false, err
	}
	return review != nil, nil
}

// ListReviews hides peer reviews from a non-staff viewer until the viewer has
// submitted their own.
func (s *Service) ListReviews(ctx context.Context, submissionID snowflake.ID, viewerID string, isStaff bool) ([]screeningdomain.Review, error) {
	if _, err := s.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	if !isStaff {
		reviewed, err := s.HasReviewed(ctx, submissionID, viewerID)
		if err != nil {
			return nil, err
		}
		if !reviewed {
			return []screeningdomain.Review{}, nil
		}
	}
	reviews, err := s.repo.ListReviews(ctx, s.db, submissionID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []screeningdomain.Review{}
	}
	return reviews, nil
}

func (s *Service) RecalculateScore(ctx context.Context, submissionID snowflake.ID) (*screeningdomain.Score, error) {
	if submissionID == 0 {
		return nil, screeningdomain.ErrInvalidID
	}
	var out *screeningdomain.Score
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.lockSubmission(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		cfg, err := s.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		out, err = s.recalculate(ctx, tx, submission, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// recalculate overwrites the submission's score row from its current reviews.
func (s *Service) recalculate(ctx context.Context, tx *gorm.DB, submission *screeningdomain.Submission, cfg scoring.Config) (*screeningdomain.Score, error) {
	ratings, err := s.repo.ListRatings(ctx, tx, submission.ID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	res := scoring.Calculate(ratings, submission.DecidedAt, now, cfg)
	score := screeningdomain.Score{
		SubmissionID:    submission.ID,
		ReviewCount:     int32(res.ReviewCount),
		MeanRating:      res.MeanRating,
		Confidence:      res.Confidence,
		AdjustedScore:   res.AdjustedScore,
		Decay:           res.Decay,
		HotScore:        res.HotScore,
		IndexedScore:    int32(res.IndexedScore),
		HotIndexedScore: int32(res.HotIndexedScore),
		CalculatedAt:    now,
	}
	if err := s.repo.UpsertScore(ctx, tx, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// RefreshHotScores recomputes every decided submission so hot scores keep
// decaying without new reviews.
func (s *Service) RefreshHotScores(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultHotBatch
	}
	var (
		afterID snowflake.ID
		count   int
		errs    []error
	)
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		ids, err := s.repo.ListDecidedSubmissionIDs(ctx, s.db, afterID, limit)
		if err != nil {
			return count, err
		}
		for _, id := range ids {
			if _, err := s.RecalculateScore(ctx, id); err != nil {
				errs = append(errs, err)
				continue
			}
			count++
		}
		if len(ids) < limit {
			break
		}
		afterID = ids[len(ids)-1]
	}
	return count, errors.Join(errs...)
}

func (s *Service) GetSubmissionSummary(ctx context.Context, id snowflake.ID) (*screeningdomain.SubmissionSummary, error) {
	submission, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := &screeningdomain.SubmissionSummary{Submission: *submission}
	score, err := s.repo.FindScore(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if score != nil {
		summary.ReviewCount = score.ReviewCount
		summary.IndexedScore = score.IndexedScore
		summary.HotIndexedScore = score.HotIndexedScore
	}
	return summary, nil
}

func (s *Service) ListRanked(ctx context.Context, req screeningdomain.ListRankedRequest) ([]screeningdomain.SubmissionSummary, error) {
	order := req.Order
	if order == "" {
		order = screeningdomain.RankByHot
	}
	if order != screeningdomain.RankByHot && order != screeningdomain.RankByIndexed {
		return nil, screeningdomain.ErrInvalidRankOrder
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRankLimit
	}
	if limit > maxRankLimit {
		limit = maxRankLimit
	}

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	filter := screeningdomain.RankFilter{
		Order:      order,
		MinReviews: cfg.MinReviewsForRanking,
		Limit:      limit,
	}
	if req.Context != nil {
		subCtx, err := screeningdomain.ParseContext(*req.Context)
		if err != nil {
			return nil, err
		}
		filter.ContextType, filter.EventID, filter.VenueID = screeningdomain.ContextColumns(subCtx)
	}

	items, err := s.repo.ListRanked(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []screeningdomain.SubmissionSummary{}
	}
	return items, nil
}

func (s *Service) CheckGenreMismatch(ctx context.Context, submissionID snowflake.ID) (bool, error) {
	if submissionID == 0 {
		return false, screeningdomain.ErrInvalidID
	}
	var mismatch bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		mismatch, err = s.refreshMismatch(ctx, tx, submissionID)
		return err
	})
	return mismatch, err
}

func (s *Service) SetArtistGenres(ctx context.Context, artistID snowflake.ID, genres []string) ([]string, error) {
	if artistID == 0 {
		return nil, screeningdomain.ErrInvalidArtist
	}
	normalized := scoring.NormalizeGenres(genres)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.ReplaceArtistGenres(ctx, tx, artistID, normalized); err != nil {
			return err
		}
		return s.refreshVenueSubmissions(ctx, tx, artistID, 0)
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func (s *Service) SetVenueRequiredGenres(ctx context.Context, venueID snowflake.ID, genres []string) ([]string, error) {
	if venueID == 0 {
		return nil, screeningdomain.ErrInvalidContext
	}
	normalized := scoring.NormalizeGenres(genres)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.ReplaceVenueGenres(ctx, tx, venueID, normalized); err != nil {
			return err
		}
		return s.refreshVenueSubmissions(ctx, tx, 0, venueID)
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func (s *Service) refreshVenueSubmissions(ctx context.Context, tx *gorm.DB, artistID, venueID snowflake.ID) error {
	ids, err := s.repo.ListVenueSubmissionIDs(ctx, tx, artistID, venueID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.refreshMismatch(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refreshMismatch(ctx context.Context, tx *gorm.DB, submissionID snowflake.ID) (bool, error) {
	submission, err := s.lockSubmission(ctx, tx, submissionID)
	if err != nil {
		return false, err
	}
	mismatch, err := s.genreMismatch(ctx, tx, submission)
	if err != nil {
		return false, err
	}
	if mismatch != submission.HasGenreMismatch {
		if err := s.repo.SetGenreMismatch(ctx, tx, submission.ID, mismatch, s.clock.Now()); err != nil {
			return false, err
		}
	}
	return mismatch, nil
}

// genreMismatch is true only for venue submissions whose venue requires at
// least one genre the artist does not have any of.
func (s *Service) genreMismatch(ctx context.Context, db *gorm.DB, submission *screeningdomain.Submission) (bool, error) {
	if submission.ContextType != screeningdomain.ContextVenue || submission.VenueID == nil {
		return false, nil
	}
	required, err := s.repo.ListVenueGenres(ctx, db, *submission.VenueID)
	if err != nil {
		return false, err
	}
	if len(required) == 0 {
		return false, nil
	}
	artist, err := s.repo.ListArtistGenres(ctx, db, submission.ArtistID)
	if err != nil {
		return false, err
	}
	return scoring.GenreMismatch(required, artist), nil
}

func (s *Service) GetConfig(ctx context.Context) (scoring.Config, error) {
	return s.loadConfig(ctx, s.db)
}

// UpdateConfig replaces the scoring configuration. Existing scores are not
// rewritten; they pick up the new values on their next recalculation.
func (s *Service) UpdateConfig(ctx context.Context, cfg scoring.Config, updatedBy string) (scoring.Config, error) {
	if err := cfg.Validate(); err != nil {
		return scoring.Config{}, err
	}
	cfg = cfg.Normalized()
	payload, err := json.Marshal(cfg)
	if err != nil {
		return scoring.Config{}, err
	}
	record := screeningdomain.ConfigRecord{
		ID:        1,
		Settings:  datatypes.JSON(payload),
		UpdatedBy: strings.TrimSpace(updatedBy),
		UpdatedAt: s.clock.Now(),
	}
	if err := s.repo.SaveConfig(ctx, s.db, &record); err != nil {
		return scoring.Config{}, err
	}
	s.InvalidateConfig()
	s.broadcastConfigChange(ctx)

	logger.WithContext(ctx, s.log).Info("screening config updated",
		zap.Float64("half_life_days", cfg.HalfLifeDays),
		zap.Float64("decay_floor", cfg.DecayFloor),
		zap.Int("confidence_tiers", len(cfg.ConfidenceTiers)),
	)
	return cfg, nil
}

func (s *Service) loadConfig(ctx context.Context, db *gorm.DB) (scoring.Config, error) {
	if cfg, ok := s.config.Get(configCacheKey); ok {
		return cfg, nil
	}
	gen := s.configGen.Load()
	record, err := s.repo.FindConfig(ctx, db)
	if err != nil {
		return scoring.Config{}, err
	}
	cfg := scoring.DefaultConfig()
	if record == nil {
		s.log.Warn("screening config missing, using defaults")
	} else if err := json.Unmarshal(record.Settings, &cfg); err != nil {
		return scoring.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return scoring.Config{}, err
	}
	if s.configGen.Load() == gen {
		s.config.Set(configCacheKey, cfg, configCacheTTL)
	}
	return cfg, nil
}

// InvalidateConfig drops the cached scoring configuration.
func (s *Service) InvalidateConfig() {
	s.configGen.Add(1)
	s.config.Delete(configCacheKey)
}

func (s *Service) lockSubmission(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*screeningdomain.Submission, error) {
	submission, err := s.repo.LockSubmission(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, screeningdomain.ErrSubmissionNotFound
	}
	return submission, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, screeningdomain.ErrInvalidID
	}
	return id, nil
}
