package global

import (
	"sort"
	"strings"

	"github.com/twosixlabs/magicwand/pkg/capture"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// Name is the identifier of the global verifier
const Name = "mw_global"

// Verifier checks the capture as a whole against the IP attribute map
type Verifier struct {
	components.Base
}

// New returns the global verifier, it has no configuration document
func New(store *components.Store) (components.Component, error) {
	base, err := components.NewBase(store, components.GlobalKind, Name)
	if err != nil {
		return nil, err
	}
	return &Verifier{Base: base}, nil
}

// Project is a no-op, the verifier launches no workload
func (v *Verifier) Project(*types.ExecutionContext) error {
	return nil
}

// ComposeFile is empty for the verifier
func (v *Verifier) ComposeFile() (string, error) {
	return "", nil
}

// Verify fails on unexpected sources and warns on expected IPs missing from the capture
func (v *Verifier) Verify(in components.VerifyInput) (bool, error) {
	sources := capture.SourceAddresses(in.Records)
	warnMissing(in.Roles, sources)
	return noUnexpected(in.Roles, sources), nil
}

func noUnexpected(roles map[string]string, sources map[string]struct{}) bool {
	if len(roles) == 0 || len(sources) == 0 {
		log.Error("[Verify]: no IPs to check")
		return false
	}
	unexpected := []string{}
	for ip := range sources {
		if _, ok := roles[ip]; ok {
			continue
		}
		// MAC and IPv6 sources
		if strings.Contains(ip, ":") {
			continue
		}
		unexpected = append(unexpected, ip)
	}
	sort.Strings(unexpected)
	for _, ip := range unexpected {
		log.Errorf("[Verify]: IP: %s is unexpected", ip)
	}
	return len(unexpected) == 0
}

func warnMissing(roles map[string]string, sources map[string]struct{}) {
	for ip := range roles {
		if _, ok := sources[ip]; ok {
			log.Debugf("[Verify]: IP: %s is in tcpdump", ip)
			continue
		}
		log.Warnf("[Verify]: IP: %s is not in tcpdump", ip)
	}
}
