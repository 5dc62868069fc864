package constants

// NATS Subjects
const (
	// Payment outcome events, one subject per terminal status
	SubjectPaymentCompleted = "payments.outcome.completed"
	SubjectPaymentCancelled = "payments.outcome.cancelled"
	SubjectPaymentTimeout   = "payments.outcome.timeout"
	SubjectPaymentFailed    = "payments.outcome.failed"
)
