package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Checkout события
	EventTypeCheckoutCompleted   EventType = "checkout.completed"
	EventTypeCheckoutFailed      EventType = "checkout.failed"
	EventTypeCheckoutCompensated EventType = "checkout.compensated"

	// Return события
	EventTypeReturnRequested EventType = "return.requested"
	EventTypeReturnApproved  EventType = "return.approved"
	EventTypeReturnRejected  EventType = "return.rejected"
)

// Topics для Kafka
const (
	TopicCheckoutEvents = "retail.checkout.events"
	TopicReturnEvents   = "retail.return.events"
)

// CheckoutEvent представляет событие жизненного цикла checkout
type CheckoutEvent struct {
	EventType     EventType              `json:"event_type"`
	SaleID        int64                  `json:"sale_id,omitempty"`
	UserID        int64                  `json:"user_id"`
	PaymentMethod string                 `json:"payment_method"`
	TotalMinor    int64                  `json:"total_minor"`
	FailureCode   string                 `json:"failure_code,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ReturnEvent представляет событие заявки на возврат
type ReturnEvent struct {
	EventType EventType              `json:"event_type"`
	ReturnID  int64                  `json:"return_id"`
	SaleID    int64                  `json:"sale_id"`
	UserID    int64                  `json:"user_id"`
	RMANumber string                 `json:"rma_number"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewCheckoutEvent создает новое событие checkout
func NewCheckoutEvent(eventType EventType, saleID, userID int64, method string, totalMinor int64, failureCode string) *CheckoutEvent {
	return &CheckoutEvent{
		EventType:     eventType,
		SaleID:        saleID,
		UserID:        userID,
		PaymentMethod: method,
		TotalMinor:    totalMinor,
		FailureCode:   failureCode,
		Timestamp:     time.Now(),
	}
}

// NewReturnEvent создает новое событие возврата
func NewReturnEvent(eventType EventType, returnID, saleID, userID int64, rmaNumber, status string) *ReturnEvent {
	return &ReturnEvent{
		EventType: eventType,
		ReturnID:  returnID,
		SaleID:    saleID,
		UserID:    userID,
		RMANumber: rmaNumber,
		Status:    status,
		Timestamp: time.Now(),
	}
}
