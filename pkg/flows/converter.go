package flows

import (
	"context"
	"os"
	"path/filepath"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/utils/exec"
)

// FlowSuffix is appended to the capture name by the converter
const FlowSuffix = "_Flow.csv"

// Converter turns a packet capture into a CIC flow table
type Converter interface {
	// Convert returns the path of the produced flow table
	Convert(ctx context.Context, pcapPath string) (string, error)
}

// DockerConverter runs the CIC converter image with the capture folder mounted on /home
type DockerConverter struct {
	Docker string
	Image  string
	Runner exec.Runner
}

// NewDockerConverter returns a converter running image through the docker binary
func NewDockerConverter(docker, image string) *DockerConverter {
	return &DockerConverter{Docker: docker, Image: image, Runner: exec.LocalRunner{}}
}

func (d *DockerConverter) Convert(ctx context.Context, pcapPath string) (string, error) {
	abs, err := filepath.Abs(pcapPath)
	if err != nil {
		return "", cerrors.Conversion{Target: pcapPath, Reason: err.Error()}
	}
	cmd := exec.Command{
		Name: d.Docker,
		Args: []string{
			"run", "--rm",
			"-v", filepath.Dir(abs) + ":/home",
			d.Image,
			"./convert_pcap.sh", "--input=" + filepath.Base(abs),
		},
	}
	log.Infof("[Status]: converting %s to flows", filepath.Base(abs))
	if _, err := d.Runner.Run(ctx, cmd); err != nil {
		return "", cerrors.Conversion{Target: pcapPath, Reason: err.Error()}
	}
	out := abs + FlowSuffix
	if _, err := os.Stat(out); err != nil {
		return "", cerrors.Conversion{Target: pcapPath, Reason: "converter produced no " + filepath.Base(out)}
	}
	return out, nil
}
