package stats

import (
	"expvar"
	"time"
)

// Metric names registered by default.
const (
	MessagesSent     = "MessagesSent"
	MessagesReceived = "MessagesReceived"
	Connects         = "Connects"
	Disconnects      = "Disconnects"
	SnapshotFetches  = "SnapshotFetches"
	SendErrors       = "SendErrors"
)

type Provider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

type ClientStats struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
}

type metricsUpdateReq struct {
	name  string
	value int
}

// NewClientStats creates a new stats instance published under
// "gochat-client-stats". Call it once per process.
func NewClientStats() *ClientStats {
	cs := &ClientStats{
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	cs.vars = expvar.NewMap("gochat-client-stats")
	cs.initializeMetrics()

	return cs
}

func (cs *ClientStats) initializeMetrics() {
	startTime := time.Now()
	cs.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	for _, name := range []string{
		MessagesSent,
		MessagesReceived,
		Connects,
		Disconnects,
		SnapshotFetches,
		SendErrors,
	} {
		cs.RegisterMetric(name)
	}
}

func (cs *ClientStats) updateMetrics() {
	for req := range cs.updateChan {
		metric := cs.vars.Get(req.name)
		if metric == nil {
			panic("metric not found: " + req.name)
		}

		metric.(*expvar.Int).Add(int64(req.value))
	}
}

func (cs *ClientStats) Incr(name string) {
	cs.updateChan <- &metricsUpdateReq{name: name, value: 1}
}

func (cs *ClientStats) Decr(name string) {
	cs.updateChan <- &metricsUpdateReq{name: name, value: -1}
}

func (cs *ClientStats) RegisterMetric(name string) {
	cs.vars.Set(name, expvar.NewInt(name))
}

func (cs *ClientStats) Run() {
	go cs.updateMetrics()
}

func (cs *ClientStats) Stop() {
	close(cs.updateChan)
}
