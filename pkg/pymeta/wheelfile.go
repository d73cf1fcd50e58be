// SPDX-License-Identifier: MPL-2.0

package pymeta

import (
	"fmt"
	"strings"
)

// WheelVersion is the wheel format version written to the WHEEL record.
const WheelVersion = "1.0"

// WheelInfo is the content of the WHEEL marker record.
type WheelInfo struct {
	// Generator names the tool and version that produced the wheel.
	Generator string
	// RootIsPurelib is false for every wheel carrying compiled code.
	RootIsPurelib bool
	// Tags are the compatibility tags ("cp312-abi3-manylinux_2_17_x86_64").
	// Compressed tag sets are expanded into one Tag line each.
	Tags []string
}

// Render returns the WHEEL record content.
func (w WheelInfo) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Wheel-Version: %s\n", WheelVersion)
	fmt.Fprintf(&sb, "Generator: %s\n", w.Generator)
	fmt.Fprintf(&sb, "Root-Is-Purelib: %t\n", w.RootIsPurelib)
	for _, tag := range ExpandTags(w.Tags) {
		fmt.Fprintf(&sb, "Tag: %s\n", tag)
	}
	return sb.String()
}

// ExpandTags expands compressed tag sets ("py3-none-a.b") into individual
// tags ("py3-none-a", "py3-none-b") keeping first-seen order.
func ExpandTags(tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range tags {
		parts := strings.SplitN(tag, "-", 3)
		if len(parts) != 3 {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
			continue
		}
		for _, py := range strings.Split(parts[0], ".") {
			for _, abi := range strings.Split(parts[1], ".") {
				for _, plat := range strings.Split(parts[2], ".") {
					expanded := py + "-" + abi + "-" + plat
					if !seen[expanded] {
						seen[expanded] = true
						out = append(out, expanded)
					}
				}
			}
		}
	}
	return out
}
