package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerReporter exposes the circuit breaker state of each upstream.
type BreakerReporter interface {
	BreakerStates() map[string]gobreaker.State
}

// Connection is satisfied by mqtt.Client.
type Connection interface {
	IsConnectionOpen() bool
}

// WriteHealth is satisfied by history.Recorder.
type WriteHealth interface {
	LastErrorAge() time.Duration
}

// Probes are the dependencies checked by /healthz, /readyz and the gRPC health service.
// Nil members are not checked.
type Probes struct {
	Breakers BreakerReporter
	MQTT     Connection
	History  WriteHealth
	// MinErrorAge is how long ago the last history write error must be.
	MinErrorAge time.Duration
}

// Check evaluates every configured dependency. The service is ready when all
// of them pass; an open breaker fails its upstream.
func (p Probes) Check() HealthStatus {
	var st HealthStatus
	checks, failed := 0, 0
	check := func(ok bool) bool {
		checks++
		if !ok {
			failed++
		}
		return ok
	}

	if p.MQTT != nil {
		ok := check(p.MQTT.IsConnectionOpen())
		st.MQTTConnected = &ok
	}
	if p.History != nil {
		age := p.History.LastErrorAge()
		minAge := p.MinErrorAge
		if minAge <= 0 {
			minAge = 30 * time.Second
		}
		ok := check(age > minAge)
		st.InfluxOK = &ok
		st.LastWriteErrorS = age.Seconds()
	}
	if p.Breakers != nil {
		states := p.Breakers.BreakerStates()
		st.Breakers = make(map[string]string, len(states))
		for name, s := range states {
			st.Breakers[name] = s.String()
			check(s != gobreaker.StateOpen)
		}
	}

	switch {
	case failed == 0:
		st.Status = "ok"
	case failed < checks:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	st.Ready = failed == 0
	return st
}

func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.cfg.Probes.Check())
}

// HandleReady answers 200 only when every dependency is ok.
func (g *Gateway) HandleReady(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Ready bool `json:"ready"`
	}
	st := g.cfg.Probes.Check()
	code := http.StatusOK
	if !st.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp{Ready: st.Ready})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
