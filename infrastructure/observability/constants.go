package observability

const (
	MetricPrefix = "raffle"
)

// Metric names
const (
	EntriesTotal          = MetricPrefix + ".entries_total"
	DrawsRequestedTotal   = MetricPrefix + ".draws.requested_total"
	DrawsCompletedTotal   = MetricPrefix + ".draws.completed_total"
	FulfillmentsRejected  = MetricPrefix + ".fulfillments.rejected_total"
	PayoutFailuresTotal   = MetricPrefix + ".payout.failures_total"
	OrphanedRequests      = MetricPrefix + ".requests.orphaned_total"
	PoolBalance           = MetricPrefix + ".pool.balance"
	PlayersActive         = MetricPrefix + ".players.active"
	UpkeepChecksTotal     = MetricPrefix + ".upkeep.checks_total"
	NATSMessagesPublished = MetricPrefix + ".nats.messages_published_total"
	OperationDuration     = MetricPrefix + ".operation.duration"
)

// Label keys
const (
	LabelEventType = "event_type"
	LabelOperation = "operation"
	LabelResult    = "result"
	LabelReason    = "reason"
)

// Result values
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)
