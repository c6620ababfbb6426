package flows

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/math"
	"github.com/twosixlabs/magicwand/pkg/metrics"
)

const (
	SrcIPColumn = "Src IP"
	DstIPColumn = "Dst IP"
	LabelColumn = "Label"
)

// Label returns the role of the non victim endpoint of a flow
func (m IPMap) Label(src, dst string) string {
	role, ok := m[src]
	if !ok {
		return RoleUnknown
	}
	if role == RoleSUT {
		if role, ok = m[dst]; !ok {
			return RoleUnknown
		}
	}
	return role
}

// Split counts labeled flows per role
type Split struct {
	Total  int
	Client int
	Attack int
}

// Log prints the benign and attack share of the flows
func (s Split) Log() {
	log.Info("[Status]: Benign Stats:")
	log.Infof("%d flows out of %d flows: %.2f", s.Client, s.Total, math.Fraction(s.Client, s.Total))
	log.Info("[Status]: Attack Stats:")
	log.Infof("%d flows out of %d flows: %.2f", s.Attack, s.Total, math.Fraction(s.Attack, s.Total))
}

// LabelFlows appends a Label column to the flow table at flowsPath and
// writes the result to cic_flow_labeled.csv next to it
func LabelFlows(flowsPath string, ipMap IPMap) (Split, error) {
	var split Split
	t, err := metrics.ReadTable(flowsPath)
	if err != nil {
		return split, errors.Wrapf(err, "unable to read flows")
	}
	srcIdx, dstIdx := t.Index(SrcIPColumn), t.Index(DstIPColumn)
	if srcIdx < 0 || dstIdx < 0 {
		return split, errors.Errorf("%s must have '%s' and '%s' columns", flowsPath, SrcIPColumn, DstIPColumn)
	}

	labeled := &metrics.Table{Header: append(append([]string(nil), t.Header...), LabelColumn)}
	for _, row := range t.Rows {
		label := RoleUnknown
		if srcIdx < len(row) && dstIdx < len(row) {
			label = ipMap.Label(row[srcIdx], row[dstIdx])
		}
		switch label {
		case RoleClient:
			split.Client++
		case RoleAttack:
			split.Attack++
		}
		split.Total++
		labeled.Rows = append(labeled.Rows, append(append([]string(nil), row...), label))
	}

	out := filepath.Join(filepath.Dir(flowsPath), metrics.LabeledFlowsFile)
	if err := metrics.WriteTable(out, labeled); err != nil {
		return split, errors.Wrapf(err, "unable to write %s", out)
	}
	return split, nil
}
