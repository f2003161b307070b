package dto

// RegisterRequest is the request body for merchant registration.
type RegisterRequest struct {
	Username     string  `json:"username" binding:"required,min=3,max=50"`
	Password     string  `json:"password" binding:"required,min=8,max=128"`
	MerchantName string  `json:"merchant_name" binding:"required,min=1,max=100"`
	WebhookURL   *string `json:"webhook_url,omitempty"`
}

// LoginRequest is the request body for merchant login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	MerchantID string `json:"merchant_id"`
	AccessKey  string `json:"access_key"`
	SecretKey  string `json:"secret_key"`
	ApiKey     string `json:"api_key"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreatePaymentRequest is the request body for POST /payments.
type CreatePaymentRequest struct {
	Amount      string            `json:"amount" binding:"required"`
	Currency    string            `json:"currency" binding:"required,len=3"`
	Provider    string            `json:"provider" binding:"required"`
	Description string            `json:"description,omitempty"`
	ExternalID  *string           `json:"external_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	WebhookURL  *string           `json:"webhook_url,omitempty" binding:"omitempty,safe_url"`
}

// CreateRefundRequest is the request body for POST /payments/:id/refunds.
type CreateRefundRequest struct {
	Amount *string `json:"amount,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// PaymentResponse is the response body for a single payment.
type PaymentResponse struct {
	ID                     string            `json:"id"`
	ExternalID             *string           `json:"external_id,omitempty"`
	Amount                 string            `json:"amount"`
	Currency               string            `json:"currency"`
	Status                 string            `json:"status"`
	Provider               string            `json:"provider"`
	ProviderTransactionID  *string           `json:"provider_transaction_id,omitempty"`
	Description            string            `json:"description,omitempty"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	CreatedAt              string            `json:"created_at"`
	UpdatedAt              string            `json:"updated_at"`
}

// PaginationResponse describes page metadata for list endpoints.
type PaginationResponse struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// PaymentListResponse wraps a paginated payment list.
type PaymentListResponse struct {
	Data       []PaymentResponse   `json:"data"`
	Pagination PaginationResponse  `json:"pagination"`
}

// RefundResponse is the response body for a single refund.
type RefundResponse struct {
	ID               string  `json:"id"`
	PaymentID        string  `json:"payment_id"`
	Amount           string  `json:"amount"`
	Status           string  `json:"status"`
	Reason           string  `json:"reason,omitempty"`
	ProviderRefundID *string `json:"provider_refund_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// RefundCreatedResponse wraps a refund together with the payment's
// resulting status.
type RefundCreatedResponse struct {
	Refund        RefundResponse `json:"refund"`
	PaymentStatus string         `json:"payment_status"`
}

// RefundableResponse is the response body for GET /payments/:id/refundable.
type RefundableResponse struct {
	PaymentAmount      string `json:"payment_amount"`
	TotalRefunded      string `json:"total_refunded"`
	PendingRefunds     string `json:"pending_refunds"`
	AvailableForRefund string `json:"available_for_refund"`
}

// UpdateWebhookRequest is the request body for updating a merchant's
// notification URL.
type UpdateWebhookRequest struct {
	WebhookURL string `json:"webhook_url" binding:"required,safe_url"`
}

// DashboardStatsResponse is the response for dashboard statistics.
type DashboardStatsResponse struct {
	TotalPayments int64  `json:"total_payments"`
	Completed     int64  `json:"completed"`
	Failed        int64  `json:"failed"`
	Refunded      int64  `json:"refunded"`
	TotalVolume   string `json:"total_volume"`
}
