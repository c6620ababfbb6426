package flows

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/metrics"
)

const (
	IPColumn   = "ip"
	TypeColumn = "type"

	// RoleSUT marks the victim, flows from it are labeled by their destination
	RoleSUT     = "sut"
	RoleAttack  = "attack"
	RoleClient  = "client"
	RoleUnknown = "unknown"
)

// IPMapFiles lists the per-role ip maps written by the workloads, in merge order
var IPMapFiles = []string{
	"ip_map_attack.csv",
	"ip_map_client.csv",
	"ip_map_rtt.csv",
	"ip_map_sut.csv",
}

// IPMap maps an address to the role of the container owning it
type IPMap map[string]string

// IPsWithRole returns the addresses holding role
func (m IPMap) IPsWithRole(role string) []string {
	var ips []string
	for ip, r := range m {
		if r == role {
			ips = append(ips, ip)
		}
	}
	return ips
}

func readIPMapTable(path string) (*metrics.Table, error) {
	t, err := metrics.ReadTable(path)
	if err != nil {
		return nil, err
	}
	if t.Index(IPColumn) < 0 || t.Index(TypeColumn) < 0 {
		return nil, errors.Errorf("%s must have '%s' and '%s' columns", path, IPColumn, TypeColumn)
	}
	return t, nil
}

// MergeIPMaps concatenates the per-role ip maps of runDir into ip_attr_map.csv
func MergeIPMaps(runDir string) (IPMap, error) {
	merged := &metrics.Table{Header: []string{IPColumn, TypeColumn}}
	for _, name := range IPMapFiles {
		path := filepath.Join(runDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		t, err := readIPMapTable(path)
		if err != nil {
			log.Warnf("[Status]: ignoring %s, err: %v", name, err)
			continue
		}
		ipIdx, typeIdx := t.Index(IPColumn), t.Index(TypeColumn)
		for _, row := range t.Rows {
			if ipIdx >= len(row) || typeIdx >= len(row) {
				continue
			}
			merged.Rows = append(merged.Rows, []string{strings.TrimSpace(row[ipIdx]), strings.TrimSpace(row[typeIdx])})
		}
	}
	if len(merged.Rows) == 0 {
		return nil, cerrors.NoData{Target: filepath.Base(runDir), Reason: "no IPs found in the ip maps"}
	}
	if err := metrics.WriteTable(filepath.Join(runDir, metrics.IPAttrMapFile), merged); err != nil {
		return nil, errors.Wrapf(err, "unable to write %s", metrics.IPAttrMapFile)
	}
	return tableToMap(merged), nil
}

// ReadIPMap reads a merged or per-role ip map
func ReadIPMap(path string) (IPMap, error) {
	t, err := readIPMapTable(path)
	if err != nil {
		return nil, err
	}
	return tableToMap(t), nil
}

// first occurrence of an address wins, as in a lookup over the concatenated maps
func tableToMap(t *metrics.Table) IPMap {
	ipIdx, typeIdx := t.Index(IPColumn), t.Index(TypeColumn)
	m := IPMap{}
	for _, row := range t.Rows {
		if ipIdx >= len(row) || typeIdx >= len(row) {
			continue
		}
		ip := strings.TrimSpace(row[ipIdx])
		if _, ok := m[ip]; !ok {
			m[ip] = strings.TrimSpace(row[typeIdx])
		}
	}
	return m
}
