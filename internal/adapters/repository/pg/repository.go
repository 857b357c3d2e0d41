package pg

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"seqlab.portal/internal/core/domain"
	"seqlab.portal/internal/core/ports"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(dsn string) (ports.JobRepository, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}

	if err := db.AutoMigrate(&domain.AnalysisJob{}); err != nil {
		return nil, nil, err
	}

	return &Repository{db: db}, db, nil
}

func (r *Repository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) GetJob(ctx context.Context, id int64) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *Repository) Update(ctx context.Context, job *domain.AnalysisJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *Repository) ListJobs(ctx context.Context, offset, limit int) ([]*domain.AnalysisJob, error) {
	var jobs []*domain.AnalysisJob
	if err := r.db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Repository) CountJobs(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.AnalysisJob{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) GetRunningJobByUser(ctx context.Context, userID int64) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.JobStatusRunning).
		Order("created_at desc").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *Repository) ListRunningByUser(ctx context.Context, userID int64) ([]*domain.AnalysisJob, error) {
	var jobs []*domain.AnalysisJob
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.JobStatusRunning).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Repository) CountJobsOfTypeSince(ctx context.Context, jobType domain.AnalysisType, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.AnalysisJob{}).
		Where("job_type = ? AND created_at >= ?", jobType, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) ListRunningOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.AnalysisJob, error) {
	var jobs []*domain.AnalysisJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.JobStatusRunning, cutoff).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
