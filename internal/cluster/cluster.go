package cluster

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-kv/aspike/internal/connpool"
	"github.com/synnergy-kv/aspike/internal/socket"
)

// ErrNoNodes is returned by node selection when the cluster has zero
// reachable nodes. It is not fatal: the tend loop keeps probing until
// shutdown.
var ErrNoNodes = fmt.Errorf("cluster: no nodes available")

// Config tunes the tend loop and per-node connection pools.
type Config struct {
	Seeds           []string
	TendInterval    time.Duration
	InfoTimeout     time.Duration
	AbsentThreshold int32
	PoolLimits      connpool.Limits
	Dialer          *socket.Dialer
	Resolver        *socket.Resolver
	Logger          *logrus.Logger
}

// DefaultConfig returns sane defaults.
func DefaultConfig(seeds []string) Config {
	return Config{
		Seeds:           seeds,
		TendInterval:    time.Second,
		InfoTimeout:     time.Second,
		AbsentThreshold: 5,
		PoolLimits: connpool.Limits{
			MinConnections: 1,
			MaxConnections: 8,
			MaxSocketIdle:  55 * time.Second,
			TotalTimeout:   time.Second,
		},
		Dialer:   socket.NewDialer(time.Second, 30*time.Second),
		Resolver: socket.NewResolver(),
		Logger:   logrus.StandardLogger(),
	}
}

// State is the per-client authoritative node table and partition maps,
// maintained by a single background tend task. Discovery is driven by the
// info sub-protocol: seeds first, then every host a node's services list
// advertises.
type State struct {
	cfg   Config
	nodes *nodeTable
	maps  *namespaceMaps

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu                sync.Mutex
	knownNumPartitions int
}

// New creates a ClusterState but does not start the tend loop.
func New(cfg Config) *State {
	if cfg.TendInterval == 0 {
		cfg.TendInterval = time.Second
	}
	if cfg.AbsentThreshold == 0 {
		cfg.AbsentThreshold = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = socket.NewResolver()
	}
	return &State{
		cfg:    cfg,
		nodes:  newNodeTable(),
		maps:   newNamespaceMaps(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start performs initial seed discovery then launches the background tend
// task.
func (s *State) Start(ctx context.Context) error {
	if err := s.discoverSeeds(ctx); err != nil {
		s.cfg.Logger.WithError(err).Warn("cluster: initial seed discovery incomplete")
	}
	go s.tendLoop(ctx)
	return nil
}

// Stop halts the tend task. Safe to call more than once.
func (s *State) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// NodeCount returns the number of live nodes.
func (s *State) NodeCount() int { return s.nodes.len() }

// Nodes returns every live node, for admin fan-out operations
// (info_foreach, job polling).
func (s *State) Nodes() []*Node { return s.nodes.all() }

// NodeByName looks up a node by its stable identity.
func (s *State) NodeByName(name string) (*Node, bool) { return s.nodes.get(name) }

// PartitionMapFor returns the current partition map for a namespace, or nil
// if the namespace hasn't been observed yet.
func (s *State) PartitionMapFor(namespace string) *PartitionMap {
	return s.maps.Get(namespace)
}

// discoverSeeds resolves and probes every seed host, installing whatever
// nodes respond.
func (s *State) discoverSeeds(ctx context.Context) error {
	var errs []string
	for _, seed := range s.cfg.Seeds {
		addr := s.cfg.Resolver.SplitHostPort(seed)
		if err := s.discoverOne(ctx, addr); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", seed, err))
		}
	}
	if len(errs) == len(s.cfg.Seeds) && len(s.cfg.Seeds) > 0 {
		return fmt.Errorf("cluster: all seeds failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *State) discoverOne(ctx context.Context, addr string) error {
	info, err := infoRoundTrip(ctx, s.cfg.Dialer, addr, s.cfg.InfoTimeout,
		"node", "partitions", "services-alt", "replicas-master", "replicas-prole", "features")
	if err != nil {
		return err
	}
	name, ok := info["node"]
	if !ok || name == "" {
		return fmt.Errorf("no node name in info reply")
	}
	if _, exists := s.nodes.get(name); exists {
		return nil
	}

	n := NewNode(name, addr, s.cfg.Dialer, s.cfg.PoolLimits)
	if numParts, err := strconv.Atoi(info["partitions"]); err == nil && numParts > 0 {
		s.mu.Lock()
		s.knownNumPartitions = numParts
		s.mu.Unlock()
	}
	if feats, ok := info["features"]; ok {
		n.SetFeatures(parseFeatureSet(feats))
	}
	s.nodes.put(n)

	s.applyReplicaInfo(n, info)

	if svc, ok := info["services-alt"]; ok {
		s.discoverServicePeers(ctx, svc)
	}
	return nil
}

func parseFeatureSet(v string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Split(v, ";") {
		if f != "" {
			out[f] = true
		}
	}
	return out
}

func (s *State) discoverServicePeers(ctx context.Context, services string) {
	for _, hostport := range strings.Split(services, ";") {
		if hostport == "" {
			continue
		}
		addr := s.cfg.Resolver.SplitHostPort(hostport)
		found := false
		for _, n := range s.nodes.all() {
			if n.Address() == addr {
				found = true
				break
			}
		}
		if !found {
			_ = s.discoverOne(ctx, addr)
		}
	}
}

// applyReplicaInfo parses the base64 partition bitmaps for every namespace
// present in the replicas-master/replicas-prole values and installs node n
// as owner of every set bit.
func (s *State) applyReplicaInfo(n *Node, info map[string]string) {
	numParts := s.numPartitions()
	if numParts == 0 {
		return
	}

	current := s.maps.Snapshot()
	updated := make(map[string]*PartitionMap, len(current))
	for ns, m := range current {
		updated[ns] = m.Clone()
	}

	applyBitmap := func(value string, setOwner func(m *PartitionMap, p int)) {
		for _, nsEntry := range strings.Split(value, ";") {
			if nsEntry == "" {
				continue
			}
			parts := strings.SplitN(nsEntry, ":", 2)
			if len(parts) != 2 {
				continue
			}
			ns, b64 := parts[0], parts[1]
			bitmap, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				continue
			}
			m, ok := updated[ns]
			if !ok {
				m = NewPartitionMap(numParts)
				updated[ns] = m
			}
			for p := 0; p < numParts && p/8 < len(bitmap); p++ {
				byteVal := bitmap[p/8]
				bit := byteVal & (1 << (7 - uint(p%8)))
				if bit != 0 {
					setOwner(m, p)
				}
			}
		}
	}

	if v, ok := info["replicas-master"]; ok {
		applyBitmap(v, func(m *PartitionMap, p int) { m.SetMaster(p, n) })
	}
	if v, ok := info["replicas-prole"]; ok {
		applyBitmap(v, func(m *PartitionMap, p int) { m.SetProle(p, n) })
	}

	s.maps.Publish(updated)
}

func (s *State) numPartitions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.knownNumPartitions == 0 {
		return 4096
	}
	return s.knownNumPartitions
}

// tendLoop is the single background task that refreshes cluster state
// every TendInterval. Exactly one instance runs per State.
func (s *State) tendLoop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.TendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tendOnce(ctx)
		}
	}
}

// tendOnce runs one tend cycle: probe every node, apply replica updates,
// discover service peers, drain recover lists, trim idle sockets.
func (s *State) tendOnce(ctx context.Context) {
	for _, n := range s.nodes.all() {
		info, err := infoRoundTrip(ctx, s.cfg.Dialer, n.Address(), s.cfg.InfoTimeout,
			"node", "partition-generation", "services-alt", "replicas-master", "replicas-prole")
		if err != nil {
			absent := n.IncrAbsent()
			if absent > s.cfg.AbsentThreshold && !s.nodeReferencedByAnyMap(n) {
				s.evict(n)
			}
			continue
		}
		n.ResetAbsent()

		if reportedName, ok := info["node"]; ok && reportedName != "" && reportedName != n.Name() {
			s.evict(n)
			continue
		}

		gen, _ := strconv.Atoi(info["partition-generation"])
		if uint32(gen) != n.PartitionGeneration() {
			n.SetPartitionGeneration(uint32(gen))
			s.applyReplicaInfo(n, info)
		}

		if svc, ok := info["services-alt"]; ok {
			s.discoverServicePeers(ctx, svc)
		}

		n.Pool().Recover().Drain(
			func(sock *socket.Socket) { n.Pool().Release(sock) },
			func(*socket.Socket) { n.Pool().DecrTotal() },
		)
		n.Pool().TrimIdle()
	}
}

func (s *State) nodeReferencedByAnyMap(n *Node) bool {
	for _, m := range s.maps.Snapshot() {
		for p := 0; p < m.NumPartitions(); p++ {
			if m.Master(p) == n || m.Prole(p) == n {
				return true
			}
		}
	}
	return false
}

func (s *State) evict(n *Node) {
	s.nodes.remove(n.Name())
	n.Deactivate()
	s.cfg.Logger.WithField("node", n.Name()).Info("cluster: evicted node")
}
