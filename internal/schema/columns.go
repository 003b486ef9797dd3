package schema

import "strings"

// Canonical column names. Raw columns come from the source files, derived
// columns are added by pipeline stages.
const (
	ColPickupTime     = "pickup_time"
	ColDropoffTime    = "dropoff_time"
	ColPickupZoneID   = "pickup_zone_id"
	ColDropoffZoneID  = "dropoff_zone_id"
	ColPassengerCount = "passenger_count"
	ColTripDistance   = "trip_distance"
	ColFareAmount     = "fare_amount"
	ColTotalAmount    = "total_amount"

	ColTripDuration = "trip_duration_minutes"

	ColZoneNamePickup     = "zone_name_pickup"
	ColBoroughPickup      = "borough_pickup"
	ColServiceZonePickup  = "service_zone_pickup"
	ColZoneNameDropoff    = "zone_name_dropoff"
	ColBoroughDropoff     = "borough_dropoff"
	ColServiceZoneDropoff = "service_zone_dropoff"

	ColDayOfWeekPickup   = "day_of_week_pickup"
	ColHourOfDayPickup   = "hour_of_day_pickup"
	ColTimeBucketPickup  = "time_of_day_bucket_pickup"
	ColDayOfWeekDropoff  = "day_of_week_dropoff"
	ColHourOfDayDropoff  = "hour_of_day_dropoff"
	ColTimeBucketDropoff = "time_of_day_bucket_dropoff"
)

// RawColumns lists the source columns in output order.
var RawColumns = []string{
	ColPickupTime,
	ColDropoffTime,
	ColPickupZoneID,
	ColDropoffZoneID,
	ColPassengerCount,
	ColTripDistance,
	ColFareAmount,
	ColTotalAmount,
}

// ZoneColumns lists the columns added by the zone join.
var ZoneColumns = []string{
	ColZoneNamePickup,
	ColBoroughPickup,
	ColServiceZonePickup,
	ColZoneNameDropoff,
	ColBoroughDropoff,
	ColServiceZoneDropoff,
}

// TimeColumns lists the calendar feature columns.
var TimeColumns = []string{
	ColDayOfWeekPickup,
	ColHourOfDayPickup,
	ColTimeBucketPickup,
	ColDayOfWeekDropoff,
	ColHourOfDayDropoff,
	ColTimeBucketDropoff,
}

// order fixes the position of every known column in output schemas.
var order = func() map[string]int {
	all := append(append(append(append([]string{}, RawColumns...), ColTripDuration), ZoneColumns...), TimeColumns...)
	m := make(map[string]int, len(all))
	for i, c := range all {
		m[c] = i
	}
	return m
}()

// Known reports whether col is a canonical column name.
func Known(col string) bool {
	_, ok := order[col]
	return ok
}

// Kind is the logical storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// KindOf returns the storage type of a canonical column.
func KindOf(col string) Kind {
	switch col {
	case ColPickupTime, ColDropoffTime:
		return KindTimestamp
	case ColPickupZoneID, ColDropoffZoneID, ColPassengerCount,
		ColDayOfWeekPickup, ColHourOfDayPickup, ColDayOfWeekDropoff, ColHourOfDayDropoff:
		return KindInt
	case ColTripDistance, ColFareAmount, ColTotalAmount, ColTripDuration:
		return KindFloat
	default:
		return KindText
	}
}

// aliases maps source header spellings (already lower-cased) to canonical
// names. Yellow files use tpep_*, green files lpep_*, and older CSV extracts
// use bare pickup_datetime.
var aliases = map[string]string{
	"tpep_pickup_datetime":  ColPickupTime,
	"tpep_dropoff_datetime": ColDropoffTime,
	"lpep_pickup_datetime":  ColPickupTime,
	"lpep_dropoff_datetime": ColDropoffTime,
	"pickup_datetime":       ColPickupTime,
	"dropoff_datetime":      ColDropoffTime,
	"pulocationid":          ColPickupZoneID,
	"dolocationid":          ColDropoffZoneID,
}

// Canonical resolves a source header to a raw canonical column name.
// Matching is case-insensitive. ok is false for columns the pipeline does not
// read from sources.
func Canonical(header string) (col string, ok bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	if c, ok := aliases[h]; ok {
		return c, true
	}
	for _, c := range RawColumns {
		if c == h {
			return c, true
		}
	}
	return "", false
}
