package repository

import (
	"fmt"
	"time"
)

// Key identifies one independent processing stream: a (commodity, region)
// pair. All state for a key is mutated under that key's lock only.
type Key struct {
	Commodity string
	Region    string
}

func NewKey(commodity, region string) Key {
	return Key{Commodity: commodity, Region: region}
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s", k.Commodity, k.Region)
}

// BucketFor truncates t to the start of its aggregation bucket.
func BucketFor(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		d = 15 * time.Minute
	}
	return t.UTC().Truncate(d)
}

// DayFor truncates t to midnight UTC, the unit of the baseline window.
func DayFor(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
