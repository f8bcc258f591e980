package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dialogues"

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Причины завершения потока
const (
	ReasonClientGone = "client_gone"
	ReasonLifetime   = "lifetime"
	ReasonForbidden  = "forbidden"
	ReasonNotFound   = "not_found"
	ReasonSendError  = "send_error"
	ReasonError      = "error"
)

type Metrics struct {
	PostsCreated      prometheus.Counter
	PostsRejected     *prometheus.CounterVec
	FeedPolls         *prometheus.CounterVec
	StreamsActive     *prometheus.GaugeVec
	StreamDisconnects *prometheus.CounterVec
	StreamBatches     *prometheus.CounterVec
}

// New регистрирует метрики в reg. nil - prometheus.DefaultRegisterer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PostsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_created_total",
			Help:      "Posts appended to dialogues.",
		}),
		PostsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_rejected_total",
			Help:      "Post submissions that stored nothing, by reason.",
		}, []string{"reason"}),
		FeedPolls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_polls_total",
			Help:      "Poll requests by outcome.",
		}, []string{"status"}),
		StreamsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Open update streams.",
		}, []string{"transport"}),
		StreamDisconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_disconnects_total",
			Help:      "Closed update streams by reason.",
		}, []string{"transport", "reason"}),
		StreamBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_batches_total",
			Help:      "Non-empty post batches pushed over streams.",
		}, []string{"transport"}),
	}
}

// Nop - метрики в собственном реестре, который никто не читает
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
