package tuner

import (
	"fmt"
	"strings"
)

// DeviceProfile selects the calibration curves the tuner uses to price a
// resolution step against a solver step.
type DeviceProfile int

const (
	ProfileCPU DeviceProfile = iota
	ProfileGPU
)

func (p DeviceProfile) String() string {
	switch p {
	case ProfileCPU:
		return "cpu"
	case ProfileGPU:
		return "gpu"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

func ParseProfile(s string) (DeviceProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu", "":
		return ProfileCPU, nil
	case "gpu":
		return ProfileGPU, nil
	default:
		return ProfileCPU, fmt.Errorf("tuner: unknown device profile %q", s)
	}
}

// Frame-time fits, in seconds, measured on the reference machines.
const (
	cpuResCubic  = 2.347e-6
	cpuResConst  = 0.0112172
	gpuResCubic  = 2.1e-8
	gpuResConst  = 0.00961385
	cpuPrecSlope = 1.29959e-3
	cpuPrecConst = -1.57226e-3
	gpuPrecSlope = 3.76968e-4
	gpuPrecConst = -5.9281e-4
)

// ResolutionCost is the modelled frame time at side n.
func (p DeviceProfile) ResolutionCost(n int) float64 {
	x := float64(n)
	if p == ProfileGPU {
		return gpuResCubic*x*x*x + gpuResConst
	}
	return cpuResCubic*x*x*x + cpuResConst
}

// PrecisionCost is the modelled frame time at the given solver step count.
func (p DeviceProfile) PrecisionCost(steps int) float64 {
	x := float64(steps)
	if p == ProfileGPU {
		return gpuPrecSlope*x + gpuPrecConst
	}
	return cpuPrecSlope*x + cpuPrecConst
}

// backwardSlope compares the cost of the last resolution step with the
// last solver step at (n, steps).
func (p DeviceProfile) backwardSlope(n, steps int) float64 {
	return (p.ResolutionCost(n) - p.ResolutionCost(n-1)) /
		(p.PrecisionCost(steps) - p.PrecisionCost(steps-1))
}

func (p DeviceProfile) forwardSlope(n, steps int) float64 {
	return (p.ResolutionCost(n+1) - p.ResolutionCost(n)) /
		(p.PrecisionCost(steps+1) - p.PrecisionCost(steps))
}
