package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInvalid = "invalid"
)

// Recorder is what the controller reports to. The zero-cost Nop is used
// when metrics are disabled.
type Recorder interface {
	SignIn(result string)
	SignUp(result string)
	ProfileSave(result string)
	RemoteAttempt(step string, attempt int, err error)
	MirrorDivergence()
}

// Collector records account flow metrics in Prometheus.
type Collector struct {
	signIn           *prometheus.CounterVec
	signUp           *prometheus.CounterVec
	profileSave      *prometheus.CounterVec
	remoteAttempts   *prometheus.CounterVec
	mirrorDivergence prometheus.Counter
}

// NewCollector creates the collector and registers it with reg.
// A nil reg leaves the metrics unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feelscape_signin_total",
			Help: "Sign-in attempts by result.",
		}, []string{"result"}),
		signUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feelscape_signup_total",
			Help: "Sign-up attempts by result.",
		}, []string{"result"}),
		profileSave: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feelscape_profile_save_total",
			Help: "Profile saves by result.",
		}, []string{"result"}),
		remoteAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feelscape_remote_attempts_total",
			Help: "Individual remote attempts made by retried steps.",
		}, []string{"step", "result"}),
		mirrorDivergence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feelscape_profile_mirror_divergence_total",
			Help: "Saves where the identity name changed but the profile document was not updated.",
		}),
	}

	if reg == nil {
		log.Warn().Msg("Prometheus registry is nil, account metrics are not exported")
		return c
	}
	for _, m := range []prometheus.Collector{c.signIn, c.signUp, c.profileSave, c.remoteAttempts, c.mirrorDivergence} {
		if err := reg.Register(m); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	return c
}

func (c *Collector) SignIn(result string)      { c.signIn.WithLabelValues(result).Inc() }
func (c *Collector) SignUp(result string)      { c.signUp.WithLabelValues(result).Inc() }
func (c *Collector) ProfileSave(result string) { c.profileSave.WithLabelValues(result).Inc() }
func (c *Collector) MirrorDivergence()         { c.mirrorDivergence.Inc() }

func (c *Collector) RemoteAttempt(step string, _ int, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	c.remoteAttempts.WithLabelValues(step, result).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) SignIn(string)                    {}
func (Nop) SignUp(string)                    {}
func (Nop) ProfileSave(string)               {}
func (Nop) RemoteAttempt(string, int, error) {}
func (Nop) MirrorDivergence()                {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
