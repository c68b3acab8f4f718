// Package metrics exposes the site's prometheus counters. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toupiao"

type Metrics struct {
	Registry *prometheus.Registry

	LoginAttempts *prometheus.CounterVec
	Registrations prometheus.Counter
	PollsCreated  prometheus.Counter
	VotesCast     prometheus.Counter
	MailMessages  *prometheus.CounterVec
	Housekeeping  *prometheus.CounterVec
	RateLimited   *prometheus.CounterVec
}

// New registers every counter on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login form submissions by outcome.",
		}, []string{"result"}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Accounts created through the register page.",
		}),
		PollsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_created_total",
			Help:      "Polls created.",
		}),
		VotesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Ballots recorded.",
		}),
		MailMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_messages_total",
			Help:      "Outgoing mail by transport and status.",
		}, []string{"transport", "status"}),
		Housekeeping: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_rows_total",
			Help:      "Rows removed or closed by housekeeping.",
		}, []string{"kind"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LoginAttempts,
		m.Registrations,
		m.PollsCreated,
		m.VotesCast,
		m.MailMessages,
		m.Housekeeping,
		m.RateLimited,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) Login(result string) {
	if m != nil {
		m.LoginAttempts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Registered() {
	if m != nil {
		m.Registrations.Inc()
	}
}

func (m *Metrics) PollCreated() {
	if m != nil {
		m.PollsCreated.Inc()
	}
}

func (m *Metrics) Voted() {
	if m != nil {
		m.VotesCast.Inc()
	}
}

func (m *Metrics) Mail(transport, status string) {
	if m != nil {
		m.MailMessages.WithLabelValues(transport, status).Inc()
	}
}

func (m *Metrics) Housekept(kind string, n int64) {
	if m != nil && n > 0 {
		m.Housekeeping.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) Limited(route string) {
	if m != nil {
		m.RateLimited.WithLabelValues(route).Inc()
	}
}
