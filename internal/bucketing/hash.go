// Package bucketing deterministically maps users onto traffic allocation
// ranges. A bucketing key is hashed with MurmurHash3 (x86, 32-bit, seed 1)
// and scaled into [0, 10000). The same key always lands in the same bucket,
// in this SDK and in every other SDK that implements the same scheme.
package bucketing

import (
	"github.com/twmb/murmur3"

	"github.com/TimurManjosov/goexperiment/internal/entities"
)

const hashSeed = 1

// GenerateBucketValue returns floor(hash / 2^32 * 10000) for bucketingKey.
func GenerateBucketValue(bucketingKey string) int {
	hash := murmur3.SeedSum32(hashSeed, []byte(bucketingKey))
	return int((uint64(hash) * entities.MaxTrafficValue) >> 32)
}

// FindBucket hashes bucketingID+parentID and returns the entity id of the
// first range whose end exceeds the bucket value, or "" when no range does.
// The bucket value is returned for logging.
func FindBucket(bucketingID, parentID string, ranges []entities.TrafficAllocation) (entityID string, bucketValue int) {
	bucketValue = GenerateBucketValue(bucketingID + parentID)
	for _, r := range ranges {
		if bucketValue < r.EndOfRange {
			return r.EntityID, bucketValue
		}
	}
	return "", bucketValue
}
