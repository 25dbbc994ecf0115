// Package metastore is the off-chain metadata cache: a write-after-confirm,
// read-for-display store for invoice details the chain does not carry.
//
// The cache is best-effort by contract. The on-chain commitment is the
// source of truth; callers log cache failures and never roll back or
// block on-chain state because of them. Merchant addresses are encrypted
// at rest.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no cached row exists for a hash.
var ErrNotFound = errors.New("metastore: invoice metadata not found")

// InvoiceMeta is the cached row for one invoice, keyed off chain by the
// commitment hash.
type InvoiceMeta struct {
	ID             string `gorm:"primaryKey"`
	InvoiceHash    string `gorm:"uniqueIndex"`
	MerchantCipher []byte
	AmountMicro    uint64
	Memo           string
	Status         string
	InvoiceTxID    string `gorm:"column:invoice_tx_id"`
	PaymentTxIDs   string `gorm:"column:payment_tx_ids"` // comma-separated transaction ids
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Invoice is the decrypted view returned to callers.
type Invoice struct {
	InvoiceHash  string
	Merchant     string
	AmountMicro  uint64
	Memo         string
	Status       string
	InvoiceTxID  string
	PaymentTxIDs []string
}

// Store is the sqlite-backed cache.
type Store struct {
	db     *gorm.DB
	cipher *addressCipher
	log    zerolog.Logger
}

// Open opens (or creates) the cache database at path with the given
// at-rest encryption key and migrates the schema.
func Open(path string, encryptionKey []byte, log zerolog.Logger) (*Store, error) {
	cipher, err := newAddressCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("metastore: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&InvoiceMeta{}); err != nil {
		return nil, fmt.Errorf("metastore: migrate: %w", err)
	}
	log.Debug().Str("path", path).Msg("metadata cache opened")
	return &Store{db: db, cipher: cipher, log: log}, nil
}

// SaveInvoice caches a freshly confirmed invoice.
func (s *Store) SaveInvoice(ctx context.Context, hash, merchant string, amountMicro uint64, memo, status, invoiceTxID string) error {
	cipherText, err := s.cipher.seal(merchant)
	if err != nil {
		return err
	}
	row := InvoiceMeta{
		ID:             uuid.NewString(),
		InvoiceHash:    hash,
		MerchantCipher: cipherText,
		AmountMicro:    amountMicro,
		Memo:           memo,
		Status:         status,
		InvoiceTxID:    invoiceTxID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("metastore: save invoice: %w", err)
	}
	return nil
}

// UpdateStatus refreshes the cached display status of an invoice.
func (s *Store) UpdateStatus(ctx context.Context, hash, status string) error {
	res := s.db.WithContext(ctx).
		Model(&InvoiceMeta{}).
		Where("invoice_hash = ?", hash).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("metastore: update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return nil
}

// AppendPaymentTx records a confirmed payment transaction id against the
// invoice.
func (s *Store) AppendPaymentTx(ctx context.Context, hash, txID string) error {
	var row InvoiceMeta
	err := s.db.WithContext(ctx).Where("invoice_hash = ?", hash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return fmt.Errorf("metastore: load invoice: %w", err)
	}
	ids := splitTxIDs(row.PaymentTxIDs)
	ids = append(ids, txID)
	err = s.db.WithContext(ctx).
		Model(&InvoiceMeta{}).
		Where("invoice_hash = ?", hash).
		Update("payment_tx_ids", strings.Join(ids, ",")).Error
	if err != nil {
		return fmt.Errorf("metastore: append payment tx: %w", err)
	}
	return nil
}

// GetInvoice returns the decrypted cached row for hash.
func (s *Store) GetInvoice(ctx context.Context, hash string) (*Invoice, error) {
	var row InvoiceMeta
	err := s.db.WithContext(ctx).Where("invoice_hash = ?", hash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("metastore: load invoice: %w", err)
	}
	merchant, err := s.cipher.open(row.MerchantCipher)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		InvoiceHash:  row.InvoiceHash,
		Merchant:     merchant,
		AmountMicro:  row.AmountMicro,
		Memo:         row.Memo,
		Status:       row.Status,
		InvoiceTxID:  row.InvoiceTxID,
		PaymentTxIDs: splitTxIDs(row.PaymentTxIDs),
	}, nil
}

func splitTxIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
