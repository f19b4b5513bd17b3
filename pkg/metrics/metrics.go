package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"Beacon/pkg/hub"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beacon"

// Metrics 指标管理器，使用独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 连接指标
	sessionsActive  *prometheus.GaugeVec
	sessionsTotal   *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	sessionLifetime *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	// 分发指标
	hubPublished *prometheus.CounterVec
	hubDelivered *prometheus.CounterVec
	hubDropped   *prometheus.CounterVec

	// 业务指标
	alertOperations *prometheus.CounterVec
}

var _ hub.Observer = (*Metrics)(nil)

// NewMetrics 创建指标管理器
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		sessionsActive: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_sessions_active",
				Help:      "Number of active realtime sessions",
			},
			[]string{"kind"},
		),

		sessionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_sessions_total",
				Help:      "Total number of admitted realtime sessions",
			},
			[]string{"kind"},
		),

		sessionsClosed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_sessions_closed_total",
				Help:      "Closed realtime sessions by close code",
			},
			[]string{"kind", "code"},
		),

		sessionLifetime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ws_session_duration_seconds",
				Help:      "Lifetime of realtime sessions",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind"},
		),

		commandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_commands_total",
				Help:      "Inbound commands by result code",
			},
			[]string{"kind", "command", "code"},
		),

		commandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ws_command_duration_seconds",
				Help:      "Inbound command handling time",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"kind", "command"},
		),

		hubPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hub_published_total",
				Help:      "Messages published per topic family",
			},
			[]string{"family"},
		),

		hubDelivered: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hub_delivered_total",
				Help:      "Messages enqueued to subscribers per topic family",
			},
			[]string{"family"},
		),

		hubDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hub_dropped_total",
				Help:      "Messages not enqueued because a subscriber queue was full",
			},
			[]string{"family"},
		),

		alertOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_operations_total",
				Help:      "Alert mutations by operation and result code",
			},
			[]string{"operation", "code"},
		),
	}
}

// Registry 底层注册表
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest 记录HTTP请求
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Published 实现 hub.Observer，按主题族聚合避免标签爆炸
func (m *Metrics) Published(topic string, delivered, dropped int) {
	family := topicFamily(topic)
	m.hubPublished.WithLabelValues(family).Inc()
	if delivered > 0 {
		m.hubDelivered.WithLabelValues(family).Add(float64(delivered))
	}
	if dropped > 0 {
		m.hubDropped.WithLabelValues(family).Add(float64(dropped))
	}
}

// ObserveTransition 报警操作结果，code 为空表示成功
func (m *Metrics) ObserveTransition(op, code string) {
	if code == "" {
		code = "ok"
	}
	m.alertOperations.WithLabelValues(op, code).Inc()
}

// SessionOpened 会话进入 active
func (m *Metrics) SessionOpened(kind string) {
	m.sessionsTotal.WithLabelValues(kind).Inc()
	m.sessionsActive.WithLabelValues(kind).Inc()
}

// SessionClosed 会话结束
func (m *Metrics) SessionClosed(kind string, code int, lifetime time.Duration) {
	m.sessionsActive.WithLabelValues(kind).Dec()
	m.sessionsClosed.WithLabelValues(kind, strconv.Itoa(code)).Inc()
	m.sessionLifetime.WithLabelValues(kind).Observe(lifetime.Seconds())
}

// CommandHandled 命令处理结果
func (m *Metrics) CommandHandled(kind, command, code string, took time.Duration) {
	m.commandsTotal.WithLabelValues(kind, command, code).Inc()
	m.commandDuration.WithLabelValues(kind, command).Observe(took.Seconds())
}

func topicFamily(topic string) string {
	if i := strings.IndexByte(topic, ':'); i >= 0 {
		return topic[:i]
	}
	return topic
}
