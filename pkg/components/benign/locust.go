package benign

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/components"
	mwmath "github.com/twosixlabs/magicwand/pkg/math"
	"github.com/twosixlabs/magicwand/pkg/types"
)

const (
	// LocustName is the registry identifier of the locust benign client
	LocustName = "mw_locust"

	// MaxIPThreads caps the number of clients a single IP may run
	MaxIPThreads = 5
	// DistScale is the scale of the normal distribution assigning clients to IPs
	DistScale = 2.0

	clientOptions = "client_options"
	numIPsKey     = "num_ips"
)

// Locust generates benign web traffic from a pool of client IPs
type Locust struct {
	components.Base
	// rng overrides the random source, nil uses the configured seed
	rng *rand.Rand
}

// NewLocust loads the mw_locust configuration
func NewLocust(store *components.Store) (components.Component, error) {
	base, err := components.NewBase(store, components.BenignKind, LocustName)
	if err != nil {
		return nil, err
	}
	return &Locust{Base: base}, nil
}

// Distribution is the number of IPs per thread count
type Distribution map[int]int

// Clients returns the total number of clients of the distribution
func (d Distribution) Clients() int {
	total := 0
	for threads, ips := range d {
		total += threads * ips
	}
	return total
}

// String renders the distribution the way the locust container parses it, {1: 7, 2: 6}
func (d Distribution) String() string {
	keys := make([]int, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d: %d", k, d[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ProbDist assigns |N(0, DistScale)| clients, rounded up and capped at MaxIPThreads, to each IP
func ProbDist(numIPs int, rng *rand.Rand) Distribution {
	dist := Distribution{}
	for i := 0; i < numIPs; i++ {
		threads := int(math.Ceil(math.Abs(rng.NormFloat64() * DistScale)))
		dist[mwmath.Minimum(threads, MaxIPThreads)]++
	}
	return dist
}

// HatchRate is the number of clients started per second
func HatchRate(clients int) int {
	return mwmath.Maximum(clients/10, 1)
}

// Project sets the client duration, seed and client distribution variables
func (l *Locust) Project(ec *types.ExecutionContext) error {
	opts, err := l.Section(clientOptions)
	if err != nil {
		return err
	}
	if err := l.Require(ec, "CURR_CLIENT_DURATION", opts, "client_duration"); err != nil {
		return err
	}
	l.Optional(ec, "CURR_LOCUST_DURATION", "NONE", opts, "locust_duration")

	seed := opts.StringOr("None", "seed")
	ec.Set("CURR_SEED", seed)
	rng := l.rng
	if rng == nil {
		src := time.Now().UnixNano()
		if seed != "None" {
			n, err := strconv.ParseInt(seed, 10, 64)
			if err != nil {
				return cerrors.Setup{Target: l.Name(), Reason: fmt.Sprintf("seed '%s' is not an integer", seed)}
			}
			src = n
		}
		rng = rand.New(rand.NewSource(src))
	}

	numIPs, err := opts.Int(numIPsKey)
	if err != nil {
		return cerrors.Setup{Target: l.Name(), Reason: err.Error() + ", it is a required field"}
	}
	ec.Setf("CURR_NUM_IPS", numIPs)

	dist := ProbDist(numIPs, rng)
	ec.Setf("CURR_NUM_CLIENTS", dist.Clients())
	ec.Setf("CURR_HATCH_RATE", HatchRate(dist.Clients()))
	ec.Set("CURR_PROB_DIST", dist.String())

	l.Optional(ec, "CURR_KEEPALIVE", "ON", opts, "keepalive")
	l.Optional(ec, "CURR_STAGGER", "ON", opts, "stagger")
	l.Optional(ec, "CURR_WAIT_MAX", "60", opts, "wait_max")
	l.Optional(ec, "CURR_TRAFFIC_BEHAVIOR", "default", opts, "traffic_behavior")
	return nil
}

// ClientCount returns the number of client IPs the run was started with
func (l *Locust) ClientCount(params types.RunParams) (int, error) {
	if params.Benign == nil {
		return 0, cerrors.NoData{Target: params.RunLoc, Reason: "run parameters have no benign section"}
	}
	return params.Benign.Int(clientOptions, numIPsKey)
}

// SetClientCount updates num_ips for the next run
func (l *Locust) SetClientCount(n int) error {
	return l.Config().Set(n, clientOptions, numIPsKey)
}
