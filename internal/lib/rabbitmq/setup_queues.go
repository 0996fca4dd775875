package rabbitmq

// QueueConfig описывает очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Topology описывает обменник и привязанные к нему очереди.
type Topology struct {
	Exchange string
	Kind     string
	Queues   []QueueConfig
}

const (
	// AuditExchange — topic‑обменник событий аудита, ключ маршрутизации — действие.
	AuditExchange = "audit"
	// PaymentsExchange — обменник подтверждённых оплат от платёжного шлюза.
	PaymentsExchange = "payments"
	// PaymentsSucceededQueue — очередь, которую читает payment-processor.
	PaymentsSucceededQueue = "payments.succeeded"
)

// AuditTopology возвращает топологию событий аудита. Очередь audit.analytics
// получает все действия для внешнего агрегатора аналитики.
func AuditTopology() Topology {
	return Topology{
		Exchange: AuditExchange,
		Kind:     "topic",
		Queues: []QueueConfig{
			{QueueName: "audit.analytics", RoutingKey: "#"},
		},
	}
}

// PaymentsTopology возвращает топологию подтверждений оплаты.
func PaymentsTopology() Topology {
	return Topology{
		Exchange: PaymentsExchange,
		Kind:     "direct",
		Queues: []QueueConfig{
			{QueueName: PaymentsSucceededQueue, RoutingKey: "succeeded"},
		},
	}
}
