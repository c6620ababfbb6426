package flows

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
)

// DefaultOutput is the flow table name used when convert is given no output
const DefaultOutput = "cic_flow.csv"

// OutputPath places bare output names next to the capture
func OutputPath(pcapPath, output string) string {
	if output == "" {
		output = DefaultOutput
	}
	if !strings.ContainsRune(output, filepath.Separator) {
		return filepath.Join(filepath.Dir(pcapPath), output)
	}
	return output
}

// Convert converts a single capture and moves the flow table to output,
// an existing output is only replaced when force is set
func Convert(ctx context.Context, conv Converter, pcapPath, output string, force bool) (string, error) {
	if _, err := os.Stat(pcapPath); err != nil {
		return "", cerrors.Conversion{Target: pcapPath, Reason: "cannot find pcap file"}
	}
	output = OutputPath(pcapPath, output)
	if _, err := os.Stat(output); err == nil && !force {
		return "", cerrors.Conversion{Target: pcapPath, Reason: "output file " + output + " already exists, use convert -f to overwrite"}
	}

	produced, err := conv.Convert(ctx, pcapPath)
	if err != nil {
		return "", err
	}
	log.Infof("[Status]: moving output file to %s", output)
	if err := os.Rename(produced, output); err != nil {
		return "", errors.Wrapf(err, "failed to move %s to %s", produced, output)
	}
	return output, nil
}
