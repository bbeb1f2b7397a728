package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// emittedTotal 统计首次写入的通知数
	emittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guideu_notifications_emitted_total",
		Help: "Notifications created, by type",
	}, []string{"type"})

	// openedTotal 统计由未读变为已读的通知数
	openedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guideu_notifications_opened_total",
		Help: "Notifications transitioned from unread to read",
	})
)
