package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_notifications_sent_total",
			Help: "Group sends issued by the notification router, by channel and event.",
		},
		[]string{"channel", "event"},
	)
	sendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_notification_send_failures_total",
			Help: "Group sends that failed at the transport and were dropped.",
		},
		[]string{"channel"},
	)
	suppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_notifications_suppressed_total",
			Help: "User article events withheld because the article is not released yet.",
		},
	)
)

func init() {
	prometheus.MustRegister(sendsTotal, sendFailuresTotal, suppressedTotal)
}
