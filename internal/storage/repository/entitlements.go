package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetVIPStatus выставляет индикатор VIP-статуса пользователя.
func (s *Storage) SetVIPStatus(ctx context.Context, userID int64, isVIP bool) error {
	const op = "repository.SetVIPStatus"

	query := `INSERT INTO entitlements (user_id, is_vip, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (user_id)
			  DO UPDATE SET is_vip = EXCLUDED.is_vip, updated_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query, userID, isVIP); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// VIPStatus возвращает индикатор VIP-статуса пользователя.
// Для неизвестного пользователя возвращается false без ошибки.
func (s *Storage) VIPStatus(ctx context.Context, userID int64) (bool, error) {
	const op = "repository.VIPStatus"

	var isVIP bool
	query := `SELECT is_vip FROM entitlements WHERE user_id = $1`
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&isVIP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return isVIP, nil
}

// PaymentRecord — строка журнала обработанных платежей.
type PaymentRecord struct {
	PaymentID   string
	UserID      int64
	PlanID      int
	Amount      float64
	Status      string
	Outcome     string
	ProcessedAt time.Time
}

// RecordPayment добавляет запись в журнал платежей. Повторная запись по
// тому же payment_id игнорируется: журнал отражает первое решение.
func (s *Storage) RecordPayment(ctx context.Context, rec PaymentRecord) error {
	const op = "repository.RecordPayment"

	query := `INSERT INTO payments (payment_id, user_id, plan_id, amount, status, outcome, processed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW())
			  ON CONFLICT (payment_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query,
		rec.PaymentID, rec.UserID, rec.PlanID, rec.Amount, rec.Status, rec.Outcome); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListPayments возвращает журнал платежей пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, userID int64, limit int) ([]*PaymentRecord, error) {
	const op = "repository.ListPayments"

	query := `SELECT payment_id, user_id, plan_id, amount, status, outcome, processed_at
			  FROM payments
			  WHERE user_id = $1
			  ORDER BY processed_at DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*PaymentRecord
	for rows.Next() {
		var rec PaymentRecord
		if err := rows.Scan(&rec.PaymentID, &rec.UserID, &rec.PlanID, &rec.Amount,
			&rec.Status, &rec.Outcome, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
