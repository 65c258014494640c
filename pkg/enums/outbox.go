package enums

// OutboxAggregateType maps to outbox_events.aggregate_type. Orders are the
// only aggregate that emits events.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder
}

// OutboxEventType maps to outbox_events.event_type.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderPaid      OutboxEventType = "order_paid"
	EventOrderDelivered OutboxEventType = "order_delivered"
)

// OrderEventTypes lists the order lifecycle events in the order they occur.
var OrderEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderDelivered,
}

func (e OutboxEventType) IsValid() bool {
	for _, known := range OrderEventTypes {
		if known == e {
			return true
		}
	}
	return false
}
