package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogpage_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// PostMutations counts post writes by operation (create, update, delete).
	PostMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogpage_post_mutations_total",
		Help: "Total number of post writes by operation",
	}, []string{"operation"})

	// AuthorizationDenials counts mutations rejected by the ownership policy.
	AuthorizationDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogpage_authorization_denials_total",
		Help: "Total number of mutations rejected by the ownership policy",
	}, []string{"resource", "operation"})

	// AuthEvents counts account events (register, login, login_failed, logout, password_change).
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogpage_auth_events_total",
		Help: "Total number of account events by type",
	}, []string{"event"})

	// AvatarResizes counts avatar normalization outcomes (resized, untouched, missing).
	AvatarResizes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogpage_avatar_normalizations_total",
		Help: "Total number of avatar normalization passes by outcome",
	}, []string{"outcome"})
)
