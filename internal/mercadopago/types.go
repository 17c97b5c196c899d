package mercadopago

import (
	"time"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

// Статусы платежа, возвращаемые шлюзом. Шлюз может пропускать
// промежуточные состояния между опросами.
const (
	StatusPending   = "pending"
	StatusInProcess = "in_process"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

// Terminal сообщает, является ли статус конечным.
func Terminal(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// CreatePaymentRequest представляет запрос на создание PIX-платежа.
type CreatePaymentRequest struct {
	TransactionAmount float64            `json:"transaction_amount"`
	Description       string             `json:"description"`
	PaymentMethodID   string             `json:"payment_method_id"`
	Metadata          models.Correlation `json:"metadata"`
	Payer             Payer              `json:"payer"`
}

// Payer — плательщик, обязательное поле API.
type Payer struct {
	Email string `json:"email"`
}

// Payment представляет платёж в ответах шлюза.
type Payment struct {
	ID                 int64              `json:"id"`
	Status             string             `json:"status"`
	TransactionAmount  float64            `json:"transaction_amount"`
	Metadata           models.Correlation `json:"metadata"`
	DateCreated        time.Time          `json:"date_created"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}
