package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	TilesGenerated    *prometheus.CounterVec
	QuotaDenials      *prometheus.CounterVec
	MigrationsRun     prometheus.Counter
	MigrationEntities *prometheus.CounterVec
	CheckoutsStarted  *prometheus.CounterVec
	PlansGranted      *prometheus.CounterVec
	UsersRegistered   prometheus.Counter
	LoginAttempts     *prometheus.CounterVec
	GuestsSwept       prometheus.Counter

	// AI metrics
	TokensConsumed prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		TilesGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiles_generated_total",
				Help: "Total number of AI tiles generated",
			},
			[]string{"subject"}, // guest, member
		),
		QuotaDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_denials_total",
				Help: "Total number of quota-denied actions",
			},
			[]string{"kind", "subject"},
		),
		MigrationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "migrations_run_total",
			Help: "Total number of guest data migrations",
		}),
		MigrationEntities: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migration_entities_total",
				Help: "Total entities migrated from guest snapshots",
			},
			[]string{"entity"}, // workspace, dashboard, tile, contact, note
		),
		CheckoutsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkouts_started_total",
				Help: "Total number of checkout sessions created",
			},
			[]string{"plan"},
		),
		PlansGranted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_granted_total",
				Help: "Total number of plan grants from paid checkouts",
			},
			[]string{"plan"},
		),
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of users registered",
		}),
		LoginAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		GuestsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guests_swept_total",
			Help: "Total number of idle guest stores evicted",
		}),

		TokensConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ai_tokens_consumed_total",
			Help: "Total number of model tokens consumed",
		}),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw path

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordTileGenerated increments the tile generation counter
func (m *Metrics) RecordTileGenerated(isMember bool) {
	m.TilesGenerated.WithLabelValues(subjectLabel(isMember)).Inc()
}

// RecordQuotaDenial increments the denial counter for a quota kind
func (m *Metrics) RecordQuotaDenial(kind string, isMember bool) {
	m.QuotaDenials.WithLabelValues(kind, subjectLabel(isMember)).Inc()
}

// RecordMigration records a finished guest migration and its entity counts
func (m *Metrics) RecordMigration(workspaces, dashboards, tiles, contacts, notes int) {
	m.MigrationsRun.Inc()
	m.MigrationEntities.WithLabelValues("workspace").Add(float64(workspaces))
	m.MigrationEntities.WithLabelValues("dashboard").Add(float64(dashboards))
	m.MigrationEntities.WithLabelValues("tile").Add(float64(tiles))
	m.MigrationEntities.WithLabelValues("contact").Add(float64(contacts))
	m.MigrationEntities.WithLabelValues("note").Add(float64(notes))
}

// RecordCheckoutStarted increments the checkout counter for a plan
func (m *Metrics) RecordCheckoutStarted(plan string) {
	m.CheckoutsStarted.WithLabelValues(plan).Inc()
}

// RecordPlanGranted increments the plan grant counter
func (m *Metrics) RecordPlanGranted(plan string) {
	m.PlansGranted.WithLabelValues(plan).Inc()
}

// RecordUserRegistered increments the registration counter
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordLoginAttempt increments the login attempt counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordGuestsSwept adds to the guest eviction counter
func (m *Metrics) RecordGuestsSwept(count int) {
	m.GuestsSwept.Add(float64(count))
}

// RecordTokensConsumed adds to the model token counter
func (m *Metrics) RecordTokensConsumed(tokens int) {
	m.TokensConsumed.Add(float64(tokens))
}

func subjectLabel(isMember bool) string {
	if isMember {
		return "member"
	}
	return "guest"
}
