// Package runmeta captures the identity and environment of a single run so
// that results stay attributable to the machine and settings that produced
// them.
package runmeta

import (
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CPU describes the processor the run executes on.
type CPU struct {
	Vendor        string   `yaml:"vendor,omitempty"`
	Brand         string   `yaml:"brand,omitempty"`
	PhysicalCores int      `yaml:"physical-cores"`
	LogicalCores  int      `yaml:"logical-cores"`
	Features      []string `yaml:"features,omitempty"`
}

// Info identifies one run and the environment it executes in.
type Info struct {
	ID        string         `yaml:"id"`
	StartedAt time.Time      `yaml:"started-at"`
	Host      string         `yaml:"host,omitempty"`
	OS        string         `yaml:"os"`
	Arch      string         `yaml:"arch"`
	GoVersion string         `yaml:"go-version"`
	CPU       CPU            `yaml:"cpu"`
	Settings  map[string]any `yaml:"settings,omitempty"`
}

// simdFeatures are the instruction-set extensions worth recording for
// numerical workloads.
var simdFeatures = []struct {
	name string
	id   cpuid.FeatureID
}{
	{"SSE4.2", cpuid.SSE42},
	{"AVX", cpuid.AVX},
	{"AVX2", cpuid.AVX2},
	{"AVX512F", cpuid.AVX512F},
	{"FMA3", cpuid.FMA3},
	{"NEON", cpuid.ASIMD},
}

// Capture assembles the metadata of a run starting now. settings may be nil.
func Capture(settings map[string]any) Info {
	host, _ := os.Hostname()

	info := Info{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Host:      host,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
		CPU: CPU{
			Vendor:        cpuid.CPU.VendorString,
			Brand:         cpuid.CPU.BrandName,
			PhysicalCores: cpuid.CPU.PhysicalCores,
			LogicalCores:  cpuid.CPU.LogicalCores,
		},
		Settings: settings,
	}

	for _, feat := range simdFeatures {
		if cpuid.CPU.Supports(feat.id) {
			info.CPU.Features = append(info.CPU.Features, feat.name)
		}
	}

	return info
}

// WriteFile serialises the info as YAML to the given path.
func (i Info) WriteFile(path string) error {
	out, err := yaml.Marshal(i)
	if err != nil {
		return errors.Wrap(err, "unable to marshal run info")
	}

	err = os.WriteFile(path, out, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to write run info to %s", path)
	}

	return nil
}
