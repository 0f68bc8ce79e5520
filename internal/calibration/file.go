// Package calibration loads U3 calibration constants from YAML files.
package calibration

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// File is the on-disk calibration layout. Constants missing from the file keep
// their nominal values.
//
//	productId: 3
//	hardwareVersion: 1.30
//	highVoltage: false
//	constants:
//	  ainSESlope: 0.0000372
//	  hvAIN0Slope: 0.000314
type File struct {
	ProductID       uint8              `yaml:"productId"`
	HardwareVersion float64            `yaml:"hardwareVersion"`
	HighVoltage     bool               `yaml:"highVoltage"`
	Constants       map[string]float64 `yaml:"constants"`
}

var constantIndex = map[string]int{
	"ainSESlope":    u3.CalAINSESlope,
	"ainSEOffset":   u3.CalAINSEOffset,
	"ainDiffSlope":  u3.CalAINDiffSlope,
	"ainDiffOffset": u3.CalAINDiffOffset,
	"dac0Slope":     u3.CalDAC0Slope,
	"dac0Offset":    u3.CalDAC0Offset,
	"dac1Slope":     u3.CalDAC1Slope,
	"dac1Offset":    u3.CalDAC1Offset,
	"tempSlope":     u3.CalTempSlope,
	"vref":          u3.CalVref,
	"vref15":        u3.CalVref15,
	"vreg":          u3.CalVreg,
	"hvAIN0Slope":   u3.CalHVAIN0Slope,
	"hvAIN1Slope":   u3.CalHVAIN0Slope + 1,
	"hvAIN2Slope":   u3.CalHVAIN0Slope + 2,
	"hvAIN3Slope":   u3.CalHVAIN0Slope + 3,
	"hvAIN0Offset":  u3.CalHVAIN0Offset,
	"hvAIN1Offset":  u3.CalHVAIN0Offset + 1,
	"hvAIN2Offset":  u3.CalHVAIN0Offset + 2,
	"hvAIN3Offset":  u3.CalHVAIN0Offset + 3,
}

// Parse decodes a calibration file.
func Parse(data []byte) (u3.CalibrationInfo, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return u3.CalibrationInfo{}, fmt.Errorf("decode calibration: %w", err)
	}
	if f.HardwareVersion <= 0 {
		return u3.CalibrationInfo{}, fmt.Errorf("calibration: hardwareVersion must be > 0")
	}

	info := u3.NominalCalibration(f.HardwareVersion, f.HighVoltage)
	if f.ProductID != 0 {
		info.ProductID = f.ProductID
	}
	for name, v := range f.Constants {
		idx, ok := constantIndex[name]
		if !ok {
			return u3.CalibrationInfo{}, fmt.Errorf("calibration: unknown constant %q", name)
		}
		info.Constants[idx] = v
	}
	return info, nil
}

// Marshal encodes info in the File layout with every constant spelled out.
func Marshal(info u3.CalibrationInfo) ([]byte, error) {
	f := File{
		ProductID:       info.ProductID,
		HardwareVersion: info.HardwareVersion,
		HighVoltage:     info.HighVoltage,
		Constants:       make(map[string]float64, len(constantIndex)),
	}
	for name, idx := range constantIndex {
		f.Constants[name] = info.Constants[idx]
	}
	return yaml.Marshal(f)
}

// Names lists the constant keys accepted in a calibration file.
func Names() []string {
	names := make([]string, 0, len(constantIndex))
	for name := range constantIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileProvider supplies calibration from a YAML file.
type FileProvider struct {
	Path string
}

func (p FileProvider) Calibration(ctx context.Context) (u3.CalibrationInfo, error) {
	if err := ctx.Err(); err != nil {
		return u3.CalibrationInfo{}, err
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return u3.CalibrationInfo{}, fmt.Errorf("read calibration file: %w", err)
	}
	return Parse(data)
}
