// Package vercmp compares upstream version strings.
package vercmp

import (
	"regexp"
	"strconv"
	"strings"
)

// Pre-release suffix priorities (lower = earlier in release cycle)
var suffixPriority = map[string]int{
	"alpha": -4,
	"beta":  -3,
	"pre":   -2,
	"rc":    -1,
	"":      0, // release version
}

// suffixRegex matches suffixes like -rc1, -beta2, -alpha
var suffixRegex = regexp.MustCompile(`-([a-z]+)(\d*)$`)

// parseVersion breaks a version string into components for comparison
// Returns: numeric parts, suffix type, suffix num
func parseVersion(v string) ([]int, string, int) {
	// Extract pre-release suffix (-rc1, -beta2, etc.)
	suffixType := ""
	suffixNum := 0
	if matches := suffixRegex.FindStringSubmatch(v); matches != nil {
		suffixType = matches[1]
		if matches[2] != "" {
			suffixNum, _ = strconv.Atoi(matches[2])
		}
		v = suffixRegex.ReplaceAllString(v, "")
	}

	// Parse numeric parts (4.1.2 -> [4, 1, 2])
	parts := strings.Split(v, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		// Tolerate letter suffixes in segments (e.g., 1.0a -> 1, 0)
		numStr := strings.TrimRight(p, "abcdefghijklmnopqrstuvwxyz")
		if numStr == "" {
			nums[i] = 0
		} else {
			nums[i], _ = strconv.Atoi(numStr)
		}
	}

	return nums, suffixType, suffixNum
}

// compareIntSlices compares two slices of integers, padding the shorter
// one with zeros (so 15.2 == 15.2.0).
func compareIntSlices(a, b []int) int {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	for i := 0; i < maxLen; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}

		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// Compare compares two dotted version strings with optional pre-release
// suffixes (alpha < beta < pre < rc < release).
// Returns: -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func Compare(v1, v2 string) int {
	nums1, suffix1, suffixNum1 := parseVersion(v1)
	nums2, suffix2, suffixNum2 := parseVersion(v2)

	// Compare numeric parts first
	if cmp := compareIntSlices(nums1, nums2); cmp != 0 {
		return cmp
	}

	// Compare suffix types
	priority1 := suffixPriority[suffix1]
	priority2 := suffixPriority[suffix2]
	if priority1 < priority2 {
		return -1
	}
	if priority1 > priority2 {
		return 1
	}

	// Same suffix type, compare suffix numbers
	if suffixNum1 < suffixNum2 {
		return -1
	}
	if suffixNum1 > suffixNum2 {
		return 1
	}

	return 0
}
