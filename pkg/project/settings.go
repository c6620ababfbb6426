package project

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
)

const (
	DefaultComponentsRoot = "magicwand_components"
	DefaultConfigsDir     = "configs"
	DefaultDataDir        = "data_runs"

	// EnvPrefix is the prefix of environment overrides, e.g. MAGICWAND_DOCKER_BINARY
	EnvPrefix = "MAGICWAND"
)

// Settings contains the project wide settings, read from the project file and the environment
type Settings struct {
	Root             string
	ComponentsRoot   string
	ConfigsDir       string
	DataDir          string
	RunsDir          string
	DockerBinary     string
	ComposeCommand   []string
	ConverterImage   string
	SamplerSource    string
	SampledContainer string
	SampleInterval   time.Duration
	RunTimeoutGrace  time.Duration
	OTelEndpoint     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("components_root", DefaultComponentsRoot)
	v.SetDefault("configs_dir", DefaultConfigsDir)
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("runs_dir", filepath.Join(DefaultComponentsRoot, "suts", "runs"))
	v.SetDefault("docker_binary", "docker")
	v.SetDefault("compose_command", "docker-compose")
	v.SetDefault("converter_image", "twosixlabsmagicwand/mw-cic-converter")
	v.SetDefault("sampler_source", "docker")
	v.SetDefault("sampled_container", "mw-sut-apachewp")
	v.SetDefault("sample_interval", "5s")
	v.SetDefault("run_timeout_grace", "10m")
	v.SetDefault("otel_endpoint", "")
}

// LoadSettings reads the settings of the project rooted at root
func LoadSettings(root string) (*Settings, error) {
	if err := RequireProject(root); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(root, MarkerFile))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, cerrors.Config{Path: filepath.Join(root, MarkerFile), Reason: err.Error()}
	}

	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	compose := strings.Fields(v.GetString("compose_command"))
	if len(compose) == 0 {
		return nil, cerrors.Config{Path: filepath.Join(root, MarkerFile), Reason: "compose_command must not be empty"}
	}
	source := v.GetString("sampler_source")
	if source != "docker" && source != "host" {
		return nil, cerrors.Config{Path: filepath.Join(root, MarkerFile), Reason: "sampler_source must be one of: docker, host"}
	}
	interval := v.GetDuration("sample_interval")
	if interval <= 0 {
		return nil, cerrors.Config{Path: filepath.Join(root, MarkerFile), Reason: "sample_interval must be positive"}
	}

	return &Settings{
		Root:             root,
		ComponentsRoot:   abs(v.GetString("components_root")),
		ConfigsDir:       abs(v.GetString("configs_dir")),
		DataDir:          abs(v.GetString("data_dir")),
		RunsDir:          abs(v.GetString("runs_dir")),
		DockerBinary:     v.GetString("docker_binary"),
		ComposeCommand:   compose,
		ConverterImage:   v.GetString("converter_image"),
		SamplerSource:    source,
		SampledContainer: v.GetString("sampled_container"),
		SampleInterval:   interval,
		RunTimeoutGrace:  v.GetDuration("run_timeout_grace"),
		OTelEndpoint:     v.GetString("otel_endpoint"),
	}, nil
}

// ConfigPath resolves a run configuration name, bare names are looked up in the configs folder
func (s *Settings) ConfigPath(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return filepath.Join(s.ConfigsDir, name)
}
