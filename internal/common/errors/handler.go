package errors

// Disposition is what a consumer does with a message after its handler ran.
type Disposition int

const (
	// Ack removes the message from the stream.
	Ack Disposition = iota
	// Nack leaves the message pending so it is redelivered.
	Nack
	// Drop acks a message that will never succeed.
	Drop
)

func (d Disposition) String() string {
	switch d {
	case Nack:
		return "nack"
	case Drop:
		return "drop"
	default:
		return "ack"
	}
}

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns a handler error into a delivery decision.
type ErrorHandler struct {
	logger     Logger
	maxDeliver int
}

func NewErrorHandler(logger Logger, maxDeliver int) *ErrorHandler {
	return &ErrorHandler{logger: logger, maxDeliver: maxDeliver}
}

// Resolve decides the fate of a message whose handler returned err.
// deliveries is how many times the message has been handed out, this one included.
func (h *ErrorHandler) Resolve(subject string, deliveries int, err error) Disposition {
	if err == nil {
		return Ack
	}

	stdErr := Normalize(err)
	fields := map[string]interface{}{
		"subject":    subject,
		"errorCode":  string(stdErr.Code),
		"message":    stdErr.Message,
		"details":    stdErr.Details,
		"retryable":  stdErr.Retryable,
		"deliveries": deliveries,
	}

	if !stdErr.Retryable {
		h.logger.Error("Dropping message that cannot be processed", fields)
		return Drop
	}
	if h.maxDeliver > 0 && deliveries >= h.maxDeliver {
		fields["maxDeliver"] = h.maxDeliver
		h.logger.Error("Dropping message after max deliveries", fields)
		return Drop
	}

	h.logger.Warn("Message handling failed, will be redelivered", fields)
	return Nack
}
