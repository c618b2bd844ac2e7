package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fenggwsx/RoomGate/internal/config"
	"github.com/fenggwsx/RoomGate/internal/storage"
)

const defaultListLimit = 100

// Store is a GORM-backed SQLite implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

type admissionModel struct {
	ID             uint                 `gorm:"primaryKey"`
	ConnectionID   string               `gorm:"uniqueIndex;size:64"`
	RemoteAddr     string               `gorm:"size:255"`
	RoomKey        string               `gorm:"index"`
	Status         string               `gorm:"index;size:16"`
	Errors         []storage.FieldError `gorm:"serializer:json"`
	ConnectedAt    time.Time            `gorm:"index"`
	DisconnectedAt *time.Time
}

func (admissionModel) TableName() string { return "admissions" }

// NewStore opens a SQLite database at the provided path.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&admissionModel{})
}

// RecordAdmission stores the outcome of one admission.
func (s *Store) RecordAdmission(ctx context.Context, admission *storage.Admission) error {
	if admission == nil {
		return errors.New("nil admission")
	}
	model := admissionModel{
		ConnectionID:   admission.ConnectionID,
		RemoteAddr:     admission.RemoteAddr,
		RoomKey:        admission.RoomKey,
		Status:         admission.Status,
		Errors:         admission.Errors,
		ConnectedAt:    admission.ConnectedAt,
		DisconnectedAt: admission.DisconnectedAt,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// RecordDisconnect stamps the disconnect time on an admission.
func (s *Store) RecordDisconnect(ctx context.Context, connectionID string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&admissionModel{}).
		Where("connection_id = ?", connectionID).
		Update("disconnected_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetAdmission retrieves the admission for a connection.
func (s *Store) GetAdmission(ctx context.Context, connectionID string) (*storage.Admission, error) {
	var model admissionModel
	err := s.db.WithContext(ctx).Where("connection_id = ?", connectionID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	admission := toAdmission(model)
	return &admission, nil
}

// ListAdmissions returns the newest admissions first.
func (s *Store) ListAdmissions(ctx context.Context, limit int) ([]storage.Admission, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var models []admissionModel
	err := s.db.WithContext(ctx).
		Order("connected_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	admissions := make([]storage.Admission, 0, len(models))
	for _, model := range models {
		admissions = append(admissions, toAdmission(model))
	}
	return admissions, nil
}

func toAdmission(model admissionModel) storage.Admission {
	return storage.Admission{
		ConnectionID:   model.ConnectionID,
		RemoteAddr:     model.RemoteAddr,
		RoomKey:        model.RoomKey,
		Status:         model.Status,
		Errors:         model.Errors,
		ConnectedAt:    model.ConnectedAt,
		DisconnectedAt: model.DisconnectedAt,
	}
}
