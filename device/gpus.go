package device

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// https://devblogs.nvidia.com/cuda-pro-tip-control-gpu-visibility-cuda_visible_devices/
const cudaVisibleDevicesKey = `CUDA_VISIBLE_DEVICES`

var errDuplicateDevice = errors.New("device: duplicate device id")

// ParseList parses a comma separated GPU list such as "0,1,2". Empty parts
// are skipped so trailing commas are harmless; duplicates and negative ids
// are rejected.
func ParseList(val string) ([]int, error) {
	if strings.TrimSpace(val) == "" {
		return nil, nil
	}
	seen := make(map[int]struct{})
	var ids []int
	for _, p := range strings.Split(val, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("device: bad device id %q: %w", p, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("device: negative device id %d", n)
		}
		if _, ok := seen[n]; ok {
			return nil, fmt.Errorf("%w: %d", errDuplicateDevice, n)
		}
		seen[n] = struct{}{}
		ids = append(ids, n)
	}
	return ids, nil
}

// VisibleDevices reads CUDA_VISIBLE_DEVICES. An unset variable means the
// caller should fall back to its own default layout, signalled by (nil, false).
func VisibleDevices() ([]int, bool, error) {
	val, ok := os.LookupEnv(cudaVisibleDevicesKey)
	if !ok {
		return nil, false, nil
	}
	ids, err := ParseList(val)
	if err != nil {
		return nil, false, fmt.Errorf("invalid %s: %w", cudaVisibleDevicesKey, err)
	}
	return ids, true, nil
}

// Range returns the identity device list [0, n).
func Range(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
