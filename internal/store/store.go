// Package store implements the liquidation-attempt audit log: every
// execute() attempt (successful or not) is persisted for after-the-fact
// profitability review and blacklist-reason analysis. Grounded directly
// on the teacher's `internal/db/transaction_recorder.go`
// (`MySQLRecorder`/`AutoMigrate`/`RecordReport` shape); the schema is new
// (`LiquidationAttemptRecord` replaces `AssetSnapshotRecord`).
package store

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// LiquidationAttemptRecord is the database model for one execute() attempt.
type LiquidationAttemptRecord struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp           time.Time `gorm:"index;not null"`
	Borrower            string    `gorm:"index;type:varchar(42);not null"`
	Strategy            string    `gorm:"type:varchar(64);not null"`
	CollateralAsset     string    `gorm:"type:varchar(42);not null"`
	DebtAsset           string    `gorm:"type:varchar(42);not null"`
	DebtToCover         string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	ExpectedSeizedValue string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	TxHash              string    `gorm:"index;type:varchar(66)"`
	Succeeded           bool      `gorm:"not null"`
	FailureReason       string    `gorm:"type:varchar(64)"`
	GasUsed             string    `gorm:"type:varchar(78);comment:big.Int as string"`
	GasCostWei          string    `gorm:"type:varchar(78);comment:big.Int as string"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (LiquidationAttemptRecord) TableName() string {
	return "liquidation_attempts"
}

// Recorder persists liquidation attempts using GORM and MySQL.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder opens dsn and auto-migrates the schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewRecorder(dsn string) (*Recorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}
	if err := db.AutoMigrate(&LiquidationAttemptRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// NewRecorderWithDB wraps an existing GORM handle instead of opening a new
// MySQL connection.
func NewRecorderWithDB(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&LiquidationAttemptRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Attempt is the outcome of a single execute() call, as reported by the
// executor to the coordinator.
type Attempt struct {
	Timestamp           time.Time
	Borrower            types.BorrowerId
	Strategy            types.StrategyId
	CollateralAsset     types.AssetId
	DebtAsset           types.AssetId
	DebtToCover         *big.Int
	ExpectedSeizedValue *big.Int
	TxHash              string
	Succeeded           bool
	FailureReason       types.BlacklistReason
	GasUsed             *big.Int
	GasCostWei          *big.Int
}

// attemptToRecord maps the executor-facing Attempt into its GORM row.
func attemptToRecord(a Attempt) LiquidationAttemptRecord {
	return LiquidationAttemptRecord{
		Timestamp:           a.Timestamp,
		Borrower:            a.Borrower.Hex(),
		Strategy:            a.Strategy.String(),
		CollateralAsset:     a.CollateralAsset.Hex(),
		DebtAsset:           a.DebtAsset.Hex(),
		DebtToCover:         bigIntToString(a.DebtToCover),
		ExpectedSeizedValue: bigIntToString(a.ExpectedSeizedValue),
		TxHash:              a.TxHash,
		Succeeded:           a.Succeeded,
		FailureReason:       string(a.FailureReason),
		GasUsed:             bigIntToString(a.GasUsed),
		GasCostWei:          bigIntToString(a.GasCostWei),
	}
}

// RecordAttempt persists one liquidation attempt.
func (r *Recorder) RecordAttempt(a Attempt) error {
	record := attemptToRecord(a)
	if result := r.db.Create(&record); result.Error != nil {
		return fmt.Errorf("record attempt: %w", result.Error)
	}
	return nil
}

// RecentFailures returns the most recent failed attempts for a borrower,
// newest first, for blacklist-reason diagnostics.
func (r *Recorder) RecentFailures(borrower types.BorrowerId, limit int) ([]LiquidationAttemptRecord, error) {
	var records []LiquidationAttemptRecord
	result := r.db.Where("borrower = ? AND succeeded = ?", borrower.Hex(), false).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("recent failures: %w", result.Error)
	}
	return records, nil
}

// CountSuccesses returns how many successful liquidations have been
// recorded, for the hourly status report.
func (r *Recorder) CountSuccesses() (int64, error) {
	var count int64
	result := r.db.Model(&LiquidationAttemptRecord{}).Where("succeeded = ?", true).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("count successes: %w", result.Error)
	}
	return count, nil
}

// Close releases the underlying connection.
func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("underlying db: %w", err)
	}
	return sqlDB.Close()
}

func bigIntToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
