package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/repository"
)

const summaryCacheKeyPrefix = "titulacion:summary:"

// SummaryService folds a proposal's evidences into the sixteen-week dashboard
// view. Results are cached in Redis and dropped on every ledger write.
type SummaryService interface {
	SummaryInvalidator
	WeeklySummary(ctx context.Context, proposalID uint) (dto.WeeklySummaryResponse, error)
}

type summaryService struct {
	proposals repository.ProposalRepository
	evidences repository.EvidenceRepository
	redis     *redis.Client
	ttl       time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewSummaryService constructs the summary service. The Redis client may be
// nil, in which case every read rebuilds the summary.
func NewSummaryService(proposals repository.ProposalRepository, evidences repository.EvidenceRepository, redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) SummaryService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &summaryService{
		proposals: proposals,
		evidences: evidences,
		redis:     redisClient,
		ttl:       ttl,
		logger:    logger.With().Str("component", "summary_service").Logger(),
		tracer:    otel.Tracer("github.com/uide-dev/titulacion-api/internal/service/summary"),
	}
}

func (s *summaryService) WeeklySummary(ctx context.Context, proposalID uint) (dto.WeeklySummaryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "summary.weekly", trace.WithAttributes(
		attribute.Int64("summary.proposal_id", int64(proposalID)),
	))
	defer span.End()

	if cached, ok := s.fromCache(ctx, proposalID); ok {
		span.SetAttributes(attribute.Bool("summary.cache_hit", true))
		return cached, nil
	}

	if _, err := s.proposals.GetByID(ctx, proposalID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WeeklySummaryResponse{}, ErrProposalNotFound
		}
		span.RecordError(err)
		return dto.WeeklySummaryResponse{}, err
	}

	evidences, err := s.evidences.ListByProposal(ctx, proposalID)
	if err != nil {
		span.RecordError(err)
		return dto.WeeklySummaryResponse{}, err
	}

	summary := buildWeeklySummary(proposalID, evidences)
	s.toCache(ctx, proposalID, summary)
	span.SetAttributes(attribute.Int("summary.evidences", len(evidences)))

	return summary, nil
}

// Invalidate drops the cached summary for a proposal.
func (s *summaryService) Invalidate(ctx context.Context, proposalID uint) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, summaryCacheKey(proposalID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("proposal_id", proposalID).Msg("failed to invalidate summary cache")
	}
}

func (s *summaryService) fromCache(ctx context.Context, proposalID uint) (dto.WeeklySummaryResponse, bool) {
	if s.redis == nil {
		return dto.WeeklySummaryResponse{}, false
	}

	raw, err := s.redis.Get(ctx, summaryCacheKey(proposalID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("proposal_id", proposalID).Msg("summary cache read failed")
		}
		return dto.WeeklySummaryResponse{}, false
	}

	var summary dto.WeeklySummaryResponse
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.logger.Warn().Err(err).Uint("proposal_id", proposalID).Msg("summary cache payload invalid")
		return dto.WeeklySummaryResponse{}, false
	}

	return summary, true
}

func (s *summaryService) toCache(ctx context.Context, proposalID uint, summary dto.WeeklySummaryResponse) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to serialize summary for cache")
		return
	}
	if err := s.redis.Set(ctx, summaryCacheKey(proposalID), payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("proposal_id", proposalID).Msg("summary cache write failed")
	}
}

func summaryCacheKey(proposalID uint) string {
	return fmt.Sprintf("%s%d", summaryCacheKeyPrefix, proposalID)
}

// buildWeeklySummary distributes evidences over the fixed sixteen-slot grid
// and averages every non-null instructor score.
func buildWeeklySummary(proposalID uint, evidences []models.Evidence) dto.WeeklySummaryResponse {
	weeks := make([]dto.WeeklySlot, models.WeeksPerTerm)
	for i := range weeks {
		weeks[i] = dto.WeeklySlot{Week: i + 1}
	}

	var sum float64
	var scored int
	for _, evidence := range evidences {
		if evidence.Week >= models.MinEvidenceWeek && evidence.Week <= models.MaxEvidenceWeek {
			slot := &weeks[evidence.Week-1]
			slot.Entries = append(slot.Entries, dto.NewEvidenceResponse(evidence))
		}
		if evidence.InstructorScore != nil {
			sum += *evidence.InstructorScore
			scored++
		}
	}

	summary := dto.WeeklySummaryResponse{ProposalID: proposalID, Weeks: weeks}
	if scored > 0 {
		average := sum / float64(scored)
		summary.Average = &average
	}

	return summary
}
