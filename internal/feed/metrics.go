package feed

import "github.com/prometheus/client_golang/prometheus"

var materializedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "gallery_feed_rows_materialized_total",
	Help: "UserArticle rows created by feed materialization.",
})

func init() {
	prometheus.MustRegister(materializedTotal)
}
