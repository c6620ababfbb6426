package stringutils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	shaLetters    = "0123456789abcdefghijklmnopqrstuvwxyz"
	letterIdxBits = 6                    // 5 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits

	// RunTimestampLayout is the layout used in run folder names
	RunTimestampLayout = "01_02_2006T15_04_05Z"
)

func GetRunID() string {
	return RandStringBytesMask(6, rand.NewSource(time.Now().UnixNano()))
}

func RandStringBytesMask(n int, src rand.Source) string {
	b := make([]byte, n)
	// A src.Int63() generates 63 random bits, enough for letterIdxMax characters!
	for i, cache, remain := n-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(shaLetters) {
			b[i] = shaLetters[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return string(b)
}

// RunFolderName builds the live run folder name, <run_type>_<timestamp>
func RunFolderName(runType string, ts time.Time) string {
	return fmt.Sprintf("%s_%s", runType, ts.UTC().Format(RunTimestampLayout))
}

// TrimPercent strips a trailing percent sign and surrounding spaces, "12.5%" -> "12.5"
func TrimPercent(value string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
}

// EnvKey converts a configuration key into an execution context name, "num_conns" -> "CURR_NUM_CONNS"
func EnvKey(key string) string {
	key = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(strings.TrimSpace(key))
	return "CURR_" + strings.ToUpper(key)
}
