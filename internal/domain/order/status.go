package order

// Status is the order lifecycle state. pending is the sole initial state;
// completed and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is set by an external settlement signal and is not coupled to
// Status by the core.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// ParseStatus validates a raw status value. The ledger only checks that the
// value is recognized; transition validity belongs to the orchestrators.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(raw); s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// adminAdvance is the edge set the admin status-advance path may follow.
var adminAdvance = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusCompleted,
}

// CanAdvance reports whether the admin path may move from -> to.
func CanAdvance(from, to Status) bool {
	return adminAdvance[from] == to
}

// CanCancel reports whether the user cancellation path may leave from.
// pending -> cancelled is the only cancellation edge; in particular an
// already-cancelled order may not be cancelled again.
func CanCancel(from Status) bool {
	return from == StatusPending
}

// CanSettlePayment reports whether a settlement signal may apply. Settlement
// only ever resolves a pending payment.
func CanSettlePayment(from, to PaymentStatus) bool {
	return from == PaymentPending && (to == PaymentPaid || to == PaymentFailed)
}
