package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		redemptionsTotal,
		trialsTotal,
		sweepItemsTotal,
		sweepDuration,
		notificationsTotal,
		channelAPICallsTotal,
		activeSubscribers,
		codesIssuedTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelpass_redemptions_total",
			Help: "Code redemption attempts by result.",
		},
		[]string{"result"},
	)

	trialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelpass_trials_total",
			Help: "Trial activation attempts by result.",
		},
		[]string{"result"},
	)

	sweepItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelpass_sweep_items_total",
			Help: "Subscribers processed by sweeps, by sweep and outcome.",
		},
		[]string{"sweep", "outcome"},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channelpass_sweep_duration_seconds",
			Help:    "Wall time of a sweep run.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"sweep"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelpass_notifications_total",
			Help: "Expiry warnings by send result.",
		},
		[]string{"result"},
	)

	channelAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelpass_channel_api_calls_total",
			Help: "Chat platform calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	activeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "channelpass_active_subscribers",
			Help: "Active, non-expired subscribers at last stats refresh.",
		},
	)

	codesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "channelpass_codes_issued_total",
			Help: "Subscription codes created by admins.",
		},
	)
)

// IncRedemption 记录一次兑换
func IncRedemption(result string) {
	redemptionsTotal.WithLabelValues(result).Inc()
}

// IncTrial 记录一次试用激活
func IncTrial(result string) {
	trialsTotal.WithLabelValues(result).Inc()
}

// IncSweepItem 记录清理任务中一个订阅者的处理结果
func IncSweepItem(sweep, outcome string) {
	sweepItemsTotal.WithLabelValues(sweep, outcome).Inc()
}

// ObserveSweep 记录清理任务耗时
func ObserveSweep(sweep string, d time.Duration) {
	sweepDuration.WithLabelValues(sweep).Observe(d.Seconds())
}

// IncNotification 记录到期提醒发送结果
func IncNotification(ok bool) {
	notificationsTotal.WithLabelValues(resultLabel(ok)).Inc()
}

// IncChannelAPICall 记录一次平台调用
func IncChannelAPICall(op string, ok bool) {
	channelAPICallsTotal.WithLabelValues(op, resultLabel(ok)).Inc()
}

// SetActiveSubscribers 设置有效订阅者数量
func SetActiveSubscribers(n int64) {
	activeSubscribers.Set(float64(n))
}

// AddCodesIssued 记录新发放的订阅码数量
func AddCodesIssued(n int) {
	codesIssuedTotal.Add(float64(n))
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
