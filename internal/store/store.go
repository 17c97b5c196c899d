// Package store реализует авторитетное хранилище записей подписок.
//
// Хранилище держит все записи в памяти и переписывает файл целиком при
// каждой мутации: сначала во временный файл, затем os.Rename, чтобы на
// диске никогда не оказывалось частично записанного состояния. Все
// логические операции — прочитать, решить, записать — выполняются под
// одним мьютексом, поэтому два конкурентных платежа одного пользователя
// не могут оба увидеть «активной записи нет».
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

// Store — файловое хранилище подписок с крупнозернистой блокировкой.
type Store struct {
	mu   sync.Mutex
	path string
	subs []models.Subscription
}

// Open загружает хранилище из файла. Отсутствующий файл означает пустое
// хранилище, это не ошибка.
func Open(path string) (*Store, error) {
	const op = "store.Open"

	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.subs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// View выполняет fn над снимком записей под блокировкой чтения состояния.
// fn не должна удерживать ссылки на срез после возврата.
func (s *Store) View(fn func(subs []models.Subscription) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.subs)
}

// Update выполняет fn под мьютексом и атомарно фиксирует возвращённый
// срез на диск. Если fn вернула ошибку, состояние не меняется. Если
// запись на диск не удалась, память также остаётся в прежнем состоянии:
// незафиксированная мутация не должна быть видна последующим решениям.
func (s *Store) Update(fn func(subs []models.Subscription) ([]models.Subscription, error)) error {
	const op = "store.Update"

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]models.Subscription, len(s.subs))
	copy(snapshot, s.subs)

	next, err := fn(snapshot)
	if err != nil {
		return err
	}

	if err := s.persist(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.subs = next
	return nil
}

// persist переписывает файл целиком через временный файл и rename.
// Вызывается только под s.mu.
func (s *Store) persist(subs []models.Subscription) error {
	data, err := json.MarshalIndent(subs, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// HasPayment сообщает, зафиксирован ли уже платёж с данным ID.
func (s *Store) HasPayment(paymentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hasPayment(s.subs, paymentID)
}

// ActiveByUser возвращает активную запись пользователя на момент now.
func (s *Store) ActiveByUser(userID int64, now time.Time) (models.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activeByUser(s.subs, userID, now)
}

// Len возвращает текущее число записей.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func hasPayment(subs []models.Subscription, paymentID string) bool {
	for _, sub := range subs {
		if sub.PaymentID == paymentID {
			return true
		}
	}
	return false
}

func activeByUser(subs []models.Subscription, userID int64, now time.Time) (models.Subscription, bool) {
	for _, sub := range subs {
		if sub.UserID == userID && sub.Active(now) {
			return sub, true
		}
	}
	return models.Subscription{}, false
}

// HasPaymentIn и ActiveUserIn — варианты для использования внутри
// замыканий Update/View, где блокировка уже взята.

// HasPaymentIn проверяет наличие платежа в переданном срезе.
func HasPaymentIn(subs []models.Subscription, paymentID string) bool {
	return hasPayment(subs, paymentID)
}

// ActiveUserIn ищет активную запись пользователя в переданном срезе.
func ActiveUserIn(subs []models.Subscription, userID int64, now time.Time) (models.Subscription, bool) {
	return activeByUser(subs, userID, now)
}
