package orders

const TopicOrderEvents = "kitchen.order.events"

// Partition key = order id so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
