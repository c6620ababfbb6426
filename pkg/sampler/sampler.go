package sampler

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/metrics"
	"github.com/twosixlabs/magicwand/pkg/utils/exec"
	"github.com/twosixlabs/magicwand/pkg/utils/stringutils"
)

// Source returns the current memory usage in percent
type Source interface {
	Sample(ctx context.Context) (float64, error)
}

// DockerSource reads the memory percentage of one container from docker stats
type DockerSource struct {
	Docker    string
	Container string
	Runner    exec.Runner
}

// NewDockerSource samples container through the docker binary
func NewDockerSource(docker, container string) *DockerSource {
	return &DockerSource{Docker: docker, Container: container, Runner: exec.LocalRunner{}}
}

// Sample runs a single non streaming docker stats
func (d *DockerSource) Sample(ctx context.Context) (float64, error) {
	out, err := d.Runner.Run(ctx, exec.Command{
		Name: d.Docker,
		Args: []string{"stats", "--no-stream", "--format", "{{.Name}}\t{{.MemPerc}}"},
	})
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(out, "\n") {
		name, pct, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok || name != d.Container {
			continue
		}
		return strconv.ParseFloat(stringutils.TrimPercent(pct), 64)
	}
	return 0, errors.Errorf("container %s not found in docker stats", d.Container)
}

// HostSource reads the memory usage of the host running the workloads
type HostSource struct{}

// Sample returns the used percentage of virtual memory
func (HostSource) Sample(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Sampler appends one memory_percent row per interval to mem_stats.csv
type Sampler struct {
	Source   Source
	Interval time.Duration
	// Now is the clock used for row timestamps
	Now func() time.Time
}

// New returns a sampler reading source every interval
func New(source Source, interval time.Duration) *Sampler {
	return &Sampler{Source: source, Interval: interval, Now: time.Now}
}

// Run samples until duration elapses or ctx is done, the first row is taken immediately
func (s *Sampler) Run(ctx context.Context, path string, duration time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{metrics.MemoryTimestampColumn, metrics.MemoryPercentColumn}); err != nil {
		return err
	}
	w.Flush()

	end := s.Now().Add(duration)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if pct, err := s.Source.Sample(ctx); err != nil {
			log.Warnf("[Sampler]: unable to sample memory, err: %v", err)
		} else {
			ts := strconv.FormatInt(s.Now().Unix(), 10)
			if err := w.Write([]string{ts, strconv.FormatFloat(pct, 'f', 2, 64)}); err != nil {
				return err
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}
		}
		if !s.Now().Before(end) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Start runs the sampler in the background, the returned channel yields its
// result once the duration has elapsed
func (s *Sampler) Start(ctx context.Context, path string, duration time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, path, duration)
		close(done)
	}()
	return done
}
