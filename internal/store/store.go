package store

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
	"gorm.io/gorm"
)

// Store is the durable repository for account records, the current-account
// pointer and the threshold settings. Every operation opens and finishes its
// own database work; the design assumes a single writer process.
type Store struct {
	db *gorm.DB
}

// New creates a credential store over an initialized database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetAll returns all stored accounts in stable creation order.
func (s *Store) GetAll() ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.Order("created_at, id").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetByID returns the account with the given ID, or nil when absent.
func (s *Store) GetByID(id string) (*models.Account, error) {
	var account models.Account
	err := s.db.Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByEmail returns the first account with the given email, or nil when absent.
func (s *Store) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	err := s.db.Where("email = ?", email).Order("created_at, id").First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Upsert inserts or merges an account record.
//
// If the ID matches an existing record, fields merge into it with the ID kept
// fixed. Failing that, an existing record with the same email lends its ID
// before merging. Otherwise a fresh ID is generated and the record inserted.
// The adopted or generated ID is written back into account.
func (s *Store) Upsert(account *models.Account) error {
	var existing *models.Account
	var err error

	if account.ID != "" {
		existing, err = s.GetByID(account.ID)
		if err != nil {
			return err
		}
	}
	if existing == nil && account.Email != "" {
		existing, err = s.GetByEmail(account.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			account.ID = existing.ID
		}
	}

	now := time.Now()
	if account.Status == "" {
		account.Status = StatusNormal
	}
	if account.LastLogin == "" {
		account.LastLogin = now.Format("2006-01-02 15:04:05")
	}

	if existing != nil {
		updates := map[string]any{
			"email":         account.Email,
			"password":      account.Password,
			"auth_source":   account.AuthSource,
			"membership":    account.Membership,
			"status":        account.Status,
			"expire_time":   account.ExpireTime,
			"refresh_token": account.RefreshToken,
			"access_token":  account.AccessToken,
			"quota":         account.Quota,
			"last_login":    account.LastLogin,
			"extra_data":    account.ExtraData,
		}
		return s.db.Model(&models.Account{}).Where("id = ?", existing.ID).Updates(updates).Error
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt == "" {
		account.CreatedAt = now.Format(time.RFC3339)
	}
	return s.db.Create(account).Error
}

// Remove deletes the account. When it was the current account, the current
// pointer is cleared without promoting another record.
func (s *Store) Remove(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&models.Account{}).Error; err != nil {
		return err
	}
	currentID, err := s.currentID()
	if err != nil {
		return err
	}
	if currentID == id {
		return s.clearCurrent()
	}
	return nil
}

// SetCurrent marks an existing account as the current one.
func (s *Store) SetCurrent(id string) error {
	account, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if account == nil {
		return errors.New("account not found: " + id)
	}
	setting := models.Setting{Key: models.SettingCurrentAccountID, Value: id}
	return s.db.Save(&setting).Error
}

// GetCurrent returns the current account. When no pointer is set but records
// exist, the first account by stored order is promoted, persisted as current
// and returned. Returns nil when the store is empty.
func (s *Store) GetCurrent() (*models.Account, error) {
	currentID, err := s.currentID()
	if err != nil {
		return nil, err
	}
	if currentID != "" {
		account, err := s.GetByID(currentID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return account, nil
		}
		// Pointer is stale, fall through to promotion.
	}

	var first models.Account
	err = s.db.Order("created_at, id").First(&first).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.SetCurrent(first.ID); err != nil {
		return nil, err
	}
	return &first, nil
}

// ClearCurrent drops the current-account pointer.
func (s *Store) ClearCurrent() error {
	return s.clearCurrent()
}

func (s *Store) currentID() (string, error) {
	var setting models.Setting
	err := s.db.Where("key = ?", models.SettingCurrentAccountID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *Store) clearCurrent() error {
	return s.db.Where("key = ?", models.SettingCurrentAccountID).Delete(&models.Setting{}).Error
}

// GetThresholds returns the threshold settings, filling in the fixed defaults
// for any unset key.
func (s *Store) GetThresholds() (map[string]int, error) {
	thresholds := models.DefaultThresholds()
	var rows []models.Threshold
	if err := s.db.Find(&rows).Error; err != nil {
		return thresholds, err
	}
	for _, row := range rows {
		thresholds[row.Key] = row.Value
	}
	return thresholds, nil
}

// SetThresholds persists the given threshold values.
func (s *Store) SetThresholds(thresholds map[string]int) error {
	for key, value := range thresholds {
		row := models.Threshold{Key: key, Value: value}
		if err := s.db.Save(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// RefreshAllStatus recomputes every account's status from its expire time.
func (s *Store) RefreshAllStatus() error {
	accounts, err := s.GetAll()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, account := range accounts {
		status := DeriveStatus(account.ExpireTime, now)
		if status == account.Status {
			continue
		}
		if err := s.db.Model(&models.Account{}).Where("id = ?", account.ID).
			Update("status", status).Error; err != nil {
			log.Printf("⚠️ Failed to refresh status for %s: %v", account.ID, err)
			return err
		}
	}
	return nil
}
