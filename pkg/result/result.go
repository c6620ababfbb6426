package result

import (
	"encoding/json"
	"os"

	"github.com/kyokomi/emoji"
	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// Verification collects the per component verification verdicts of a run, in check order
type Verification struct {
	Results []types.VerificationResult
}

// SetVerdict records the verdict of a component
func (v *Verification) SetVerdict(name string, passed bool) {
	verdict := types.PassVerdict + emoji.Sprint(" :thumbsup:")
	if !passed {
		verdict = "Better Luck Next Time" + emoji.Sprint(" :thumbsdown:")
	}
	v.Results = append(v.Results, types.VerificationResult{Name: name, Passed: passed, Verdict: verdict})
}

// Passed reports whether every component passed
func (v *Verification) Passed() bool {
	for _, r := range v.Results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Print logs the verdict of every component
func (v *Verification) Print() {
	for _, r := range v.Results {
		log.InfoWithValues("[Verify]: verification result", map[string]interface{}{
			"Component": r.Name,
			"Verdict":   r.Verdict,
		})
	}
}

// Write stores the verdicts as a component name to bool mapping
func (v *Verification) Write(path string) error {
	verdicts := make(map[string]bool, len(v.Results))
	for _, r := range v.Results {
		verdicts[r.Name] = r.Passed
	}
	raw, err := json.Marshal(verdicts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	return nil
}
