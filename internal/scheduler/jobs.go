package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
	"go.uber.org/zap"
)

const staleGenerationNote = "Generation did not finish in time"

// FailStaleLettersJob moves letters stuck in generating past the threshold to
// failed. Credits are only taken on the move to pending_review, so none are
// returned here.
func (s *Scheduler) FailStaleLettersJob(ctx context.Context) error {
	ctx, run, _ := s.ensureJobRun(ctx, JobFailStaleLetters, s.cfg.BatchSize)
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.StaleGenerating)

	var jobErr error
	var lastID snowflake.ID
	for {
		ids, err := s.fetchStaleLetters(ctx, cutoff, lastID)
		if err != nil {
			return errors.Join(jobErr, err)
		}
		if len(ids) == 0 {
			return jobErr
		}
		lastID = ids[len(ids)-1]

		for _, id := range ids {
			ok, err := s.letterRepo.UpdateFromStatus(ctx, s.db, id,
				[]letterdomain.Status{letterdomain.StatusGenerating},
				map[string]any{
					"status":     letterdomain.StatusFailed,
					"updated_at": now,
				},
			)
			if err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logJobError(ctx, run, "failed to fail stale letter", err, zap.String("letter_id", id.String()))
				continue
			}
			if !ok {
				// Finished by its request in the meantime.
				continue
			}
			s.metrics.RecordLetterTransition(ctx, letterdomain.StatusGenerating.String(), letterdomain.StatusFailed.String())
			_ = s.auditSvc.RecordLetterEvent(ctx, auditdomain.LetterEvent{
				LetterID:  id,
				Action:    letterdomain.ActionGenerationFailed,
				OldStatus: letterdomain.StatusGenerating.String(),
				NewStatus: letterdomain.StatusFailed.String(),
				Notes:     staleGenerationNote,
			})
			run.AddProcessed(1)
		}

		if len(ids) < s.cfg.BatchSize {
			return jobErr
		}
	}
}

func (s *Scheduler) fetchStaleLetters(ctx context.Context, cutoff time.Time, after snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT id
		 FROM letters
		 WHERE status = ? AND updated_at <= ? AND id > ?
		 ORDER BY id
		 LIMIT ?`,
		letterdomain.StatusGenerating,
		cutoff,
		after,
		s.cfg.BatchSize,
	).Scan(&ids).Error
	return ids, err
}

// PurgeSessionsJob deletes sessions that expired or were revoked longer ago
// than the retention window.
func (s *Scheduler) PurgeSessionsJob(ctx context.Context) error {
	ctx, run, _ := s.ensureJobRun(ctx, JobPurgeSessions, s.cfg.BatchSize)
	cutoff := s.clock.Now().Add(-s.cfg.SessionRetention)

	result := s.db.WithContext(ctx).Exec(
		`DELETE FROM sessions
		 WHERE expires_at < ?
		    OR (revoked_at IS NOT NULL AND revoked_at < ?)`,
		cutoff,
		cutoff,
	)
	if result.Error != nil {
		return result.Error
	}
	run.AddProcessed(int(result.RowsAffected))
	return nil
}
