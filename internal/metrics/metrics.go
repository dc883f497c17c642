package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "settlement"

// Метрики верификации и сделок. Счётчики работают и без регистрации,
// поэтому сервисы можно тестировать без Register.
var (
	VerificationIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_issued_total",
			Help:      "Выданные коды верификации по операции (issue/resend) и результату",
		},
		[]string{"operation", "result"},
	)

	VerificationChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_checks_total",
			Help:      "Проверки кодов по результату",
		},
		[]string{"result"},
	)

	NotificationDeliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_delivery_failures_total",
			Help:      "Ошибки доставки кода по каналу",
		},
		[]string{"channel"},
	)

	EscrowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_transitions_total",
			Help:      "Попытки переходов сделок по событию и результату",
		},
		[]string{"event", "result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP запросы по маршруту, методу и статусу",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP запросов",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

var registerOnce sync.Once

// Register регистрирует метрики в стандартном реестре prometheus.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			VerificationIssuedTotal,
			VerificationChecksTotal,
			NotificationDeliveryFailuresTotal,
			EscrowTransitionsTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}
