package payment

type CreatePaymentRequest struct {
	ConsultationID string  `json:"consultation_id" binding:"required"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod  string  `json:"payment_method"`
	TransactionID  string  `json:"transaction_id"`
}
