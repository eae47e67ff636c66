package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farm-iot-provisioning/internal/domain/store"
	"farm-iot-provisioning/internal/infrastructure/database/postgres/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Committer applies a list of writes inside one database transaction.
type Committer struct {
	db *DB
}

func NewCommitter(db *DB) *Committer {
	return &Committer{db: db}
}

var _ store.Committer = (*Committer)(nil)

// Commit applies writes in order. The first failing write rolls back the whole
// transaction; a failed precondition is reported as *store.ConflictError.
func (c *Committer) Commit(ctx context.Context, writes ...store.Write) error {
	if len(writes) == 0 {
		return nil
	}

	return c.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range writes {
			if err := applyWrite(tx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyWrite(tx *gorm.DB, w store.Write) error {
	switch w := w.(type) {
	case store.RequestWrite:
		return applyRequestWrite(tx, w)
	case store.DeviceWrite:
		return applyDeviceWrite(tx, w)
	case store.LinkWrite:
		return applyLinkWrite(tx, w)
	case store.UnlinkWrite:
		return applyUnlinkWrite(tx, w)
	case store.NotificationWrite:
		return applyNotificationWrite(tx, w)
	case store.GrantWrite:
		return applyGrantWrite(tx, w)
	default:
		return fmt.Errorf("unsupported write %T", w)
	}
}

func applyRequestWrite(tx *gorm.DB, w store.RequestWrite) error {
	if w.Request == nil {
		return errors.New("request write without request")
	}
	dbModel, err := toRequestModel(w.Request)
	if err != nil {
		return err
	}

	if w.ExpectStatus == "" {
		if err := tx.Create(dbModel).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &store.ConflictError{Target: w.Target(), Key: dbModel.ID.String()}
			}
			return fmt.Errorf("failed to create device request: %w", err)
		}
		return nil
	}

	result := tx.Model(&models.DeviceRequestModel{}).
		Where("id = ? AND status = ?", dbModel.ID, string(w.ExpectStatus)).
		Updates(requestColumns(dbModel))
	if result.Error != nil {
		return fmt.Errorf("failed to update device request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &store.ConflictError{Target: w.Target(), Key: dbModel.ID.String()}
	}
	return nil
}

func applyDeviceWrite(tx *gorm.DB, w store.DeviceWrite) error {
	if w.Device == nil {
		return errors.New("device write without device")
	}
	if err := w.Device.CheckInvariants(); err != nil {
		return fmt.Errorf("refusing to store device %s: %w", w.Device.ID, err)
	}
	dbModel := toDeviceModel(w.Device)

	if w.Create {
		if err := tx.Create(dbModel).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &store.ConflictError{Target: w.Target(), Key: dbModel.ID}
			}
			return fmt.Errorf("failed to create device: %w", err)
		}
		return nil
	}

	query := tx.Model(&models.DeviceModel{}).Where("id = ?", dbModel.ID)
	if w.ExpectOwner == nil {
		query = query.Where("owner_user_id IS NULL")
	} else {
		query = query.Where("owner_user_id = ?", *w.ExpectOwner)
	}

	result := query.Updates(deviceColumns(dbModel))
	if result.Error != nil {
		return fmt.Errorf("failed to update device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &store.ConflictError{Target: w.Target(), Key: dbModel.ID}
	}
	return nil
}

func applyLinkWrite(tx *gorm.DB, w store.LinkWrite) error {
	link := &models.UserDeviceModel{
		UserID:    w.UserID,
		DeviceID:  w.DeviceID,
		CreatedAt: time.Now().UTC(),
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error
	if err != nil {
		return fmt.Errorf("failed to link device: %w", err)
	}
	return nil
}

func applyUnlinkWrite(tx *gorm.DB, w store.UnlinkWrite) error {
	err := tx.Where("user_id = ? AND device_id = ?", w.UserID, w.DeviceID).
		Delete(&models.UserDeviceModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink device: %w", err)
	}
	return nil
}

func applyNotificationWrite(tx *gorm.DB, w store.NotificationWrite) error {
	if w.Notification == nil {
		return errors.New("notification write without notification")
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(toNotificationModel(w.Notification)).Error
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func applyGrantWrite(tx *gorm.DB, w store.GrantWrite) error {
	if w.Grant == nil {
		return errors.New("grant write without grant")
	}
	dbModel := toGrantModel(w.Grant)

	if w.Create {
		if err := tx.Create(dbModel).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &store.ConflictError{Target: w.Target(), Key: dbModel.ID.String()}
			}
			return fmt.Errorf("failed to create access grant: %w", err)
		}
		return nil
	}

	result := tx.Model(&models.AccessGrantModel{}).
		Where("id = ? AND revoked_at IS NULL", dbModel.ID).
		Updates(map[string]interface{}{
			"revoked_at": dbModel.RevokedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke access grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &store.ConflictError{Target: w.Target(), Key: dbModel.ID.String()}
	}
	return nil
}
