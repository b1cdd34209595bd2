package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/r0gig0r/double-take/internal/core/models"
)

// Repository defines the store operations of the review subsystem.
type Repository interface {
	// Match record reads
	FindUnknownFaces(q FaceQuery) ([]models.MatchRecord, int64, error)
	CountUnknownFaces() (int64, error)
	ListCameras() ([]string, error)

	// Training record bookkeeping
	InsertTrainingRecord(rec *models.TrainingRecord) (bool, error)
	CountActiveBySubject(subject string) (int64, error)
	CountDistinctActiveSubjects() (int64, error)
	CountActiveTaggedSince(since time.Time) (int64, error)
	CountActiveTrainingRecords() (int64, error)
}

// GormRepository implements Repository on a GORM SQLite connection.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new repository instance.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// unknownScope builds the unknown-face predicate: best-result name is the
// literal "unknown" and the match flag is unset. strictBox additionally
// requires a usable bounding box (width present and positive); rows
// without one are not reviewable.
func (r *GormRepository) unknownScope(strictBox bool, camera string) *gorm.DB {
	tx := r.db.Model(&models.MatchRecord{}).
		Where(exprBestName+" = ?", "unknown").
		Where(exprBestMatch + " = 0")

	if strictBox {
		tx = tx.Where(exprBestBoxWidth + " > 0")
	}
	if camera != "" {
		tx = tx.Where(exprEventCamera+" = ?", camera)
	}
	return tx
}

// FindUnknownFaces returns one page of unknown-face match records plus the
// total size of the matching set. The total is counted independently of
// the page fetch so it stays correct for out-of-range pages.
func (r *GormRepository) FindUnknownFaces(q FaceQuery) ([]models.MatchRecord, int64, error) {
	q.Normalize()

	var total int64
	if err := r.unknownScope(true, q.Camera).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.MatchRecord
	err := r.unknownScope(true, q.Camera).
		Order(q.OrderClause()).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// CountUnknownFaces counts all reviewable unknown faces (strict box
// predicate, no camera filter).
func (r *GormRepository) CountUnknownFaces() (int64, error) {
	var total int64
	err := r.unknownScope(true, "").Count(&total).Error
	return total, err
}

// ListCameras returns the distinct cameras of all unknown records,
// ascending. The box filter is intentionally not applied here.
func (r *GormRepository) ListCameras() ([]string, error) {
	var cameras []string
	err := r.unknownScope(false, "").
		Where(exprEventCamera + " IS NOT NULL").
		Distinct().
		Order("name ASC").
		Pluck(exprEventCamera+" AS name", &cameras).Error
	if err != nil {
		return nil, err
	}
	return cameras, nil
}

// InsertTrainingRecord performs the idempotent bookkeeping insert: at most
// one active record per (name, filename). The conflict-ignoring insert is
// atomic at the store, so concurrent duplicates cannot both land.
// Returns whether a new row was created.
func (r *GormRepository) InsertTrainingRecord(rec *models.TrainingRecord) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "filename"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountActiveBySubject counts active training records for one subject.
// Always recomputed, never cached, so concurrent tagging is reflected.
func (r *GormRepository) CountActiveBySubject(subject string) (int64, error) {
	var count int64
	err := r.db.Model(&models.TrainingRecord{}).
		Where("name = ? AND is_active = ?", subject, true).
		Count(&count).Error
	return count, err
}

// CountDistinctActiveSubjects counts the distinct subjects touched by
// active training records.
func (r *GormRepository) CountDistinctActiveSubjects() (int64, error) {
	var count int64
	err := r.db.Model(&models.TrainingRecord{}).
		Where("is_active = ?", true).
		Distinct("name").
		Count(&count).Error
	return count, err
}

// CountActiveTaggedSince counts active training records created at or
// after the given instant.
func (r *GormRepository) CountActiveTaggedSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.TrainingRecord{}).
		Where("is_active = ? AND created_at >= ?", true, since).
		Count(&count).Error
	return count, err
}

// CountActiveTrainingRecords counts all active training records.
func (r *GormRepository) CountActiveTrainingRecords() (int64, error) {
	var count int64
	err := r.db.Model(&models.TrainingRecord{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}
