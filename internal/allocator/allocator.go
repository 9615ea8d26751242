// Package allocator validates variant sets and buckets participants into
// variants. Everything here is a pure function of its inputs: assignment is
// sticky without any shared state, so it is safe under unlimited concurrency.
package allocator

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// MinVariants is the smallest variant set that can be compared.
const MinVariants = 2

// bucketResolution is the number of buckets per percentage point.
const bucketResolution = 100

const totalBuckets = 100 * bucketResolution

// ValidateVariantSet rejects sets with fewer than two variants, negative or
// out-of-range percentages, duplicate or empty names, or percentages that do
// not sum to exactly 100.
func ValidateVariantSet(variants []domain.Variant) error {
	if len(variants) < MinVariants {
		return domain.Validationf("an experiment needs at least %d variants, got %d", MinVariants, len(variants))
	}

	seen := make(map[string]struct{}, len(variants))
	sum := 0
	for i, v := range variants {
		if v.Name == "" {
			return domain.Validationf("variant %d has no name", i+1)
		}
		if _, dup := seen[v.Name]; dup {
			return domain.Validationf("variant name %q is used more than once", v.Name)
		}
		seen[v.Name] = struct{}{}

		if v.Percentage < 0 {
			return domain.Validationf("variant %q has negative percentage %d", v.Name, v.Percentage)
		}
		if v.Percentage > 100 {
			return domain.Validationf("variant %q has percentage %d above 100", v.Name, v.Percentage)
		}
		sum += v.Percentage
	}

	if sum != 100 {
		return domain.Validationf("variant percentages must sum to 100, got %d", sum)
	}
	return nil
}

// ValidateTrafficPercentage rejects values outside [1,100].
func ValidateTrafficPercentage(p int) error {
	if p < 1 || p > 100 {
		return domain.Validationf("traffic percentage must be between 1 and 100, got %d", p)
	}
	return nil
}

// AssignVariant deterministically maps a participant to a variant name. The
// second result is false when the participant is excluded, i.e. outside the
// experiment's traffic slice.
//
// A stable bucket in [0, 10000) is derived from (experimentID, participantID).
// Buckets below trafficPercentage*100 are in the experiment; that bucket is
// rescaled onto [0, 10000) and matched against the cumulative variant ranges
// in declared order.
func AssignVariant(experimentID, participantID string, variants []domain.Variant, trafficPercentage int) (string, bool) {
	if len(variants) == 0 || trafficPercentage <= 0 {
		return "", false
	}
	if trafficPercentage > 100 {
		trafficPercentage = 100
	}

	b := bucket(experimentID, participantID)
	inTraffic := uint64(trafficPercentage * bucketResolution)
	if b >= inTraffic {
		return "", false
	}

	scaled := b * totalBuckets / inTraffic
	var upper uint64
	for _, v := range variants {
		if v.Percentage <= 0 {
			continue
		}
		upper += uint64(v.Percentage * bucketResolution)
		if scaled < upper {
			return v.Name, true
		}
	}

	// Only reachable for sets that do not sum to 100.
	return "", false
}

// bucket hashes the pair into [0, totalBuckets). The length prefix keeps
// ("ab","c") and ("a","bc") apart.
func bucket(experimentID, participantID string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.Itoa(len(experimentID)))
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(experimentID)
	_, _ = d.WriteString(participantID)
	return d.Sum64() % totalBuckets
}
