package stringutils

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

func TestRandStringBytesMask(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		seed     int64
		expected string
	}{
		{
			name:     "6-char string from seed 1234",
			n:        6,
			seed:     1234,
			expected: "ts9ng0",
		},
		{
			name:     "6-char string from seed 42",
			n:        6,
			seed:     42,
			expected: "pb6mvj",
		},
		{
			name:     "empty string with n = 0",
			n:        0,
			seed:     999,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := rand.NewSource(tt.seed)
			got := RandStringBytesMask(tt.n, src)
			if got != tt.expected {
				t.Errorf("RandStringBytesMask(%d, %d) = %q; want %q", tt.n, tt.seed, got, tt.expected)
			}
		})
	}
}

func TestGetRunID(t *testing.T) {
	id := GetRunID()

	if len(id) != 6 {
		t.Errorf("expected length 6, got %d", len(id))
	}

	for _, ch := range id {
		if !strings.ContainsRune(shaLetters, ch) {
			t.Errorf("invalid character %q in run ID", ch)
		}
	}
}

func TestRunFolderName(t *testing.T) {
	ts := time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
	if got := RunFolderName("apachekill", ts); got != "apachekill_03_04_2021T05_06_07Z" {
		t.Errorf("RunFolderName() = %q", got)
	}
}

func TestTrimPercent(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"12.5%", "12.5"},
		{" 0.41% ", "0.41"},
		{"7", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := TrimPercent(tt.input); got != tt.expected {
				t.Errorf("TrimPercent(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"num_conns", "CURR_NUM_CONNS"},
		{"packet-rate", "CURR_PACKET_RATE"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := EnvKey(tt.input); got != tt.expected {
				t.Errorf("EnvKey(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}
