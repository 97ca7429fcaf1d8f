// Package metrics exposes service counters on a private Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sosnet"

type Collector struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	subscriptionsOpen  prometheus.Gauge
	subscribersDropped prometheus.Counter
	eventsDispatched   prometheus.Counter
	relayPosition      prometheus.Gauge
	webhooksSent       *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_submissions_total",
			Help:      "Report submissions by outcome.",
		}, []string{"outcome"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "State transition requests by result.",
		}, []string{"result"}),
		subscriptionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Open viewport subscriptions.",
		}),
		subscribersDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers disconnected because their queue overflowed.",
		}),
		eventsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Event deliveries to subscriber queues.",
		}),
		relayPosition: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_sequence",
			Help:      "Last event-log sequence forwarded by the relay.",
		}),
		webhooksSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_sent_total",
			Help:      "Webhook deliveries by result.",
		}, []string{"result"}),
	}
}

func (c *Collector) SubmissionObserved(outcome string) { c.submissions.WithLabelValues(outcome).Inc() }
func (c *Collector) TransitionObserved(result string)  { c.transitions.WithLabelValues(result).Inc() }

func (c *Collector) SubscriptionOpened() { c.subscriptionsOpen.Inc() }
func (c *Collector) SubscriptionClosed() { c.subscriptionsOpen.Dec() }
func (c *Collector) SubscriberDropped()  { c.subscribersDropped.Inc() }

func (c *Collector) EventsDispatched(n int) {
	if n > 0 {
		c.eventsDispatched.Add(float64(n))
	}
}

func (c *Collector) RelayPosition(seq int64) { c.relayPosition.Set(float64(seq)) }

func (c *Collector) WebhookObserved(result string) { c.webhooksSent.WithLabelValues(result).Inc() }

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
