package store

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cpesync/internal/config"
	"cpesync/internal/models"
)

// Gorm is the SQL-backed store. The driver is selected by DB_DRIVER:
// postgres for deployments, sqlite for single-file setups and tests.
type Gorm struct {
	db *gorm.DB
}

func OpenGorm(cfg *config.Config) (*Gorm, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Event{},
		&models.AttendanceRecord{},
		&models.AuditEntry{},
	); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) CreateAccount(ctx context.Context, acct *models.Account) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("id_number = ?", acct.IDNumber).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateIDNumber
		}
		// The unique index backstops the check when two registrations race.
		if err := tx.Create(acct).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateIDNumber
			}
			return err
		}
		return nil
	})
}

func (g *Gorm) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	var acct models.Account
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&acct).Error; err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

func (g *Gorm) AccountByIDNumber(ctx context.Context, idNumber string) (*models.Account, error) {
	var acct models.Account
	if err := g.db.WithContext(ctx).Where("id_number = ?", idNumber).First(&acct).Error; err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

func (g *Gorm) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := g.db.WithContext(ctx).Order("created_at, id").Find(&accounts).Error
	return accounts, err
}

func (g *Gorm) DeleteAccount(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Account{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("account_id = ?", id).Delete(&models.AttendanceRecord{}).Error
	})
}

func (g *Gorm) CreateEvent(ctx context.Context, event *models.Event) error {
	return g.db.WithContext(ctx).Create(event).Error
}

func (g *Gorm) EventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (g *Gorm) UpdateEvent(ctx context.Context, id string, patch EventPatch) (*models.Event, error) {
	var event models.Event
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&event).Error; err != nil {
			return notFound(err)
		}
		applyPatch(&event, patch)
		event.UpdatedAt = time.Now().UTC()
		return tx.Save(&event).Error
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (g *Gorm) DeleteEvent(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Event{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("event_id = ?", id).Delete(&models.AttendanceRecord{}).Error
	})
}

func (g *Gorm) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := g.db.WithContext(ctx).Order("created_at, id").Find(&events).Error
	return events, err
}

func (g *Gorm) SubmitAttendance(ctx context.Context, sub Submission) (*models.AttendanceRecord, error) {
	rec := models.AttendanceRecord{
		ID:            uuid.NewString(),
		EventID:       sub.EventID,
		AccountID:     sub.AccountID,
		SubmittedCode: sub.SubmittedCode,
		Caption:       sub.Caption,
		ProofImage:    sub.ProofImage,
		Status:        models.AttendancePending,
		SubmittedAt:   time.Now().UTC(),
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.Where("id = ?", sub.EventID).First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		var count int64
		if err := tx.Model(&models.Account{}).Where("id = ?", sub.AccountID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrAccountNotFound
		}
		if subtle.ConstantTimeCompare([]byte(sub.SubmittedCode), []byte(event.AttendanceCode)) != 1 {
			return ErrCodeMismatch
		}
		if err := tx.Model(&models.AttendanceRecord{}).
			Where("event_id = ? AND account_id = ?", sub.EventID, sub.AccountID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateSubmission
		}
		// The unique (event_id, account_id) index backstops this check when
		// two submissions race past the count.
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateSubmission
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *Gorm) AttendanceByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (g *Gorm) UpdateAttendanceStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&rec).Error; err != nil {
			return notFound(err)
		}
		now := time.Now().UTC()
		rec.Status = status
		rec.VerifiedAt = &now
		return tx.Save(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *Gorm) ListAttendanceByEvent(ctx context.Context, eventID string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := g.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("submitted_at, id").
		Find(&records).Error
	return records, err
}

func (g *Gorm) ListAttendanceByAccount(ctx context.Context, accountID string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := g.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("submitted_at, id").
		Find(&records).Error
	return records, err
}

func (g *Gorm) AppendAudit(ctx context.Context, action string, detail any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	entry := models.AuditEntry{
		Action:    action,
		Detail:    string(payload),
		CreatedAt: time.Now().UTC(),
	}
	return g.db.WithContext(ctx).Create(&entry).Error
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
