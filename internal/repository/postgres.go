package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.UserBalanceRecord{}, &models.Transaction{}, &models.NotificationProvider{}, &models.TelegramProvider{}, &models.EmailProvider{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) GetUserBalance(userID string) (*models.UserBalanceRecord, error) {
	var record models.UserBalanceRecord
	if err := db.Conn.Where("user_id = ?", userID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user balance: %s", err)
	}

	return &record, nil
}

func (db *PostgresDB) EnsureUserBalance(userID string, subscription models.Subscription) error {
	record := models.UserBalanceRecord{
		UserID:       userID,
		Subscription: string(subscription),
		UpdatedAt:    time.Now().Unix(),
	}
	if err := db.Conn.Where("user_id = ?", userID).FirstOrCreate(&record).Error; err != nil {
		return fmt.Errorf("failed to ensure user balance: %s", err)
	}
	return nil
}

// SaveUserBalanceIfHigher is the SQL side of the max rule: the conditional
// UPDATE makes concurrent writers race safely, whoever carries the highest
// value wins and nobody can lower it.
func (db *PostgresDB) SaveUserBalanceIfHigher(userID string, balance float64) (bool, error) {
	result := db.Conn.Model(&models.UserBalanceRecord{}).
		Where("user_id = ? AND balance < ?", userID, balance).
		Updates(map[string]interface{}{
			"balance":    balance,
			"updated_at": time.Now().Unix(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to save user balance: %s", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (db *PostgresDB) ResetUserBalance(userID string) error {
	if err := db.Conn.Model(&models.UserBalanceRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":    0,
			"updated_at": time.Now().Unix(),
		}).Error; err != nil {
		return fmt.Errorf("failed to reset user balance: %s", err)
	}
	return nil
}

func (db *PostgresDB) SetSubscription(userID string, subscription models.Subscription) error {
	if err := db.Conn.Model(&models.UserBalanceRecord{}).
		Where("user_id = ?", userID).
		Update("subscription", string(subscription)).Error; err != nil {
		return fmt.Errorf("failed to set subscription: %s", err)
	}
	return nil
}

// IncrementSessionCount gates the quota on the SQL side: the conditional
// UPDATE lets exactly quota increments through no matter how many sessions
// race on the same row.
func (db *PostgresDB) IncrementSessionCount(userID string, quota int) (int, bool, error) {
	result := db.Conn.Model(&models.UserBalanceRecord{}).
		Where("user_id = ? AND daily_session_count < ?", userID, quota).
		Update("daily_session_count", gorm.Expr("daily_session_count + 1"))
	if result.Error != nil {
		return 0, false, fmt.Errorf("failed to increment session count: %s", result.Error)
	}

	var record models.UserBalanceRecord
	if err := db.Conn.Where("user_id = ?", userID).First(&record).Error; err != nil {
		return 0, false, fmt.Errorf("failed to read session count: %s", err)
	}
	return record.DailySessionCount, result.RowsAffected > 0, nil
}

func (db *PostgresDB) ResetDailySessionCounts() error {
	if err := db.Conn.Model(&models.UserBalanceRecord{}).
		Where("daily_session_count > 0").
		Update("daily_session_count", 0).Error; err != nil {
		return fmt.Errorf("failed to reset session counts: %s", err)
	}
	return nil
}

func (db *PostgresDB) AppendTransaction(tx *models.Transaction) error {
	db.logger.Debug("Appending transaction ", "transaction ", tx)
	if err := db.Conn.Create(tx).Error; err != nil {
		return fmt.Errorf("failed to append transaction: %s", err)
	}
	return nil
}

func (db *PostgresDB) TransactionsBetween(userID string, from, to time.Time) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	if err := db.Conn.Where("user_id = ? AND date >= ? AND date < ?", userID, from.Unix(), to.Unix()).
		Order("date ASC").
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to get transactions: %s", err)
	}

	return transactions, nil
}

func (db *PostgresDB) SumGainsBetween(userID string, from, to time.Time) (float64, error) {
	var sum float64
	if err := db.Conn.Model(&models.Transaction{}).
		Where("user_id = ? AND date >= ? AND date < ? AND gain > 0", userID, from.Unix(), to.Unix()).
		Select("COALESCE(SUM(gain), 0)").
		Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("failed to sum gains: %s", err)
	}

	return sum, nil
}

func (db *PostgresDB) GetNotificationProvider(userID string) (*models.NotificationProvider, error) {
	var notificationProvider models.NotificationProvider
	if err := db.Conn.Preload("TelegramProvider").Preload("EmailProvider").Where("user_id = ?", userID).First(&notificationProvider).Error; err != nil {
		return nil, fmt.Errorf("failed to get user's notification provider: %s", err)
	}

	return &notificationProvider, nil
}

func (db *PostgresDB) AddTelegramProviderChatID(username, chatID string) error {
	if err := db.Conn.Model(&models.TelegramProvider{}).Where("username = ?", username).Update("chat_id", chatID).Error; err != nil {
		return fmt.Errorf("failed to add telegram provider chat ID: %s", err)
	}
	return nil
}
