package aspike

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClusterStats exposes live per-node connection, error and timeout counters
// as Prometheus gauges/counters, for callers who register Collectors() with
// their own registry. RetryCount gives a cluster-wide error total on demand;
// it is not exported as a Prometheus series.
type ClusterStats struct {
	client *Client

	nodesOpen    prometheus.GaugeFunc
	connsInPool  *prometheus.GaugeVec
	errorCount   *prometheus.CounterVec
	timeoutCount *prometheus.CounterVec
}

func newClusterStats(c *Client) *ClusterStats {
	s := &ClusterStats{client: c}
	s.nodesOpen = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "aspike",
		Subsystem: "cluster",
		Name:      "nodes",
		Help:      "Number of nodes currently known to the client.",
	}, func() float64 { return float64(c.cluster.NodeCount()) })

	s.connsInPool = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aspike",
		Subsystem: "node",
		Name:      "conns_in_pool",
		Help:      "Connections currently counted by a node's pool, idle and checked out.",
	}, []string{"node"})

	s.errorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aspike",
		Subsystem: "node",
		Name:      "errors_total",
		Help:      "Command errors recorded against a node.",
	}, []string{"node"})

	s.timeoutCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aspike",
		Subsystem: "node",
		Name:      "timeouts_total",
		Help:      "Command timeouts recorded against a node.",
	}, []string{"node"})

	return s
}

// Collectors returns every Prometheus collector this client maintains, for
// registration with a caller-owned prometheus.Registerer.
func (s *ClusterStats) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.nodesOpen, s.connsInPool, s.errorCount, s.timeoutCount}
}

// NodeSnapshot is a point-in-time view of one node's connection and error
// counters.
type NodeSnapshot struct {
	Name            string
	Address         string
	Active          bool
	ConnsInPool     int
	ConnsTotal      int
	AbsentIntervals int32
	ErrorCount      uint64
	TimeoutCount    uint64
}

// Snapshot walks every known node and returns its current counters,
// refreshing the exported Prometheus gauges as a side effect.
func (s *ClusterStats) Snapshot() []NodeSnapshot {
	nodes := s.client.cluster.Nodes()
	out := make([]NodeSnapshot, 0, len(nodes))
	for _, n := range nodes {
		snap := NodeSnapshot{
			Name:            n.Name(),
			Address:         n.Address(),
			Active:          n.Active(),
			ConnsTotal:      n.Pool().Total(),
			AbsentIntervals: n.AbsentIntervals(),
			ErrorCount:      n.ErrorCount(),
			TimeoutCount:    n.TimeoutCount(),
		}
		s.connsInPool.WithLabelValues(n.Name()).Set(float64(snap.ConnsTotal))
		// Re-create each counter series at the node's cumulative total.
		s.errorCount.DeleteLabelValues(n.Name())
		s.errorCount.WithLabelValues(n.Name()).Add(float64(snap.ErrorCount))
		s.timeoutCount.DeleteLabelValues(n.Name())
		s.timeoutCount.WithLabelValues(n.Name()).Add(float64(snap.TimeoutCount))
		out = append(out, snap)
	}
	return out
}

// RetryCount sums every node's recorded errors into a cluster-wide view.
func (s *ClusterStats) RetryCount() uint64 {
	var total uint64
	for _, n := range s.client.cluster.Nodes() {
		total += n.ErrorCount()
	}
	return total
}
