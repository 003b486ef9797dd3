package parquet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxiprep/internal/etlerr"
	"taxiprep/internal/schema"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestReadFile_Yellow(t *testing.T) {
	t.Parallel()

	pu := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "yellow_tripdata_2024-03.parquet")
	require.NoError(t, parquet.WriteFile(path, []yellowRow{
		{PickupTime: schema.Time(pu), DropoffTime: schema.Time(pu.Add(20 * time.Minute)), PassengerCount: f64(2), TripDistance: f64(3.5),
			PULocationID: i64(132), DOLocationID: i64(236), FareAmount: f64(18.5), TotalAmount: f64(25.1)},
		{PickupTime: schema.Time(pu), PassengerCount: nil, TripDistance: f64(0), PULocationID: nil, DOLocationID: i64(1),
			FareAmount: f64(11), TotalAmount: nil},
	}))

	recs, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	r := recs[0]
	require.NotNil(t, r.PickupTime)
	assert.True(t, r.PickupTime.Equal(pu))
	assert.Equal(t, 20*time.Minute, r.DropoffTime.Sub(*r.PickupTime))
	assert.Equal(t, int64(2), *r.PassengerCount)
	assert.Equal(t, int64(132), *r.PickupZoneID)
	assert.Equal(t, 25.1, *r.TotalAmount)
	assert.Equal(t, path, r.Source)
	assert.Equal(t, 1, r.Line)

	r = recs[1]
	assert.Nil(t, r.DropoffTime)
	assert.Nil(t, r.PassengerCount)
	assert.Nil(t, r.PickupZoneID)
	assert.Nil(t, r.TotalAmount)
	assert.Equal(t, 2, r.Line)
}

func TestReadFile_Green(t *testing.T) {
	t.Parallel()

	pu := time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "green_tripdata_2023-01.parquet")
	require.NoError(t, parquet.WriteFile(path, []greenRow{
		{PickupTime: schema.Time(pu), DropoffTime: schema.Time(pu.Add(30 * time.Minute)), PassengerCount: f64(1), TripDistance: f64(4.2),
			PULocationID: i64(74), DOLocationID: i64(75), FareAmount: f64(20), TotalAmount: f64(24)},
	}))

	recs, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(74), *recs[0].PickupZoneID)
	assert.True(t, recs[0].DropoffTime.Equal(pu.Add(30*time.Minute)))
}

func TestReadFile_ManyBatchesKeepTheirValues(t *testing.T) {
	t.Parallel()

	const n = 2*readBatch + 1808
	pu := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]yellowRow, n)
	for i := range rows {
		rows[i] = yellowRow{
			PickupTime: schema.Time(pu.Add(time.Duration(i) * time.Second)), DropoffTime: schema.Time(pu.Add(time.Hour)),
			PassengerCount: f64(1), TripDistance: f64(float64(i) / 10), PULocationID: i64(int64(i)), DOLocationID: i64(int64(n - i)),
			FareAmount: f64(float64(i)), TotalAmount: f64(float64(i) + 3),
		}
	}
	path := filepath.Join(t.TempDir(), "yellow_tripdata_2024-03.parquet")
	require.NoError(t, parquet.WriteFile(path, rows))

	recs, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, n)
	for i, r := range recs {
		if *r.FareAmount != float64(i) || *r.TotalAmount != float64(i)+3 || *r.PickupZoneID != int64(i) ||
			*r.DropoffZoneID != int64(n-i) || *r.TripDistance != float64(i)/10 {
			t.Fatalf("row %d got fare=%v total=%v pu=%v do=%v dist=%v", i, *r.FareAmount, *r.TotalAmount,
				*r.PickupZoneID, *r.DropoffZoneID, *r.TripDistance)
		}
		if !r.PickupTime.Equal(pu.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("row %d pickup got %v", i, r.PickupTime)
		}
	}
}

func TestReadFile_NullAndEpochTimestamps(t *testing.T) {
	t.Parallel()

	epoch := time.Unix(0, 0).UTC()
	path := filepath.Join(t.TempDir(), "yellow_tripdata_1970-01.parquet")
	require.NoError(t, parquet.WriteFile(path, []yellowRow{
		{PickupTime: schema.Time(epoch), DropoffTime: schema.Time(epoch.Add(5 * time.Minute)), TripDistance: f64(1),
			PULocationID: i64(1), DOLocationID: i64(2), FareAmount: f64(5), TotalAmount: f64(6)},
		{PickupTime: nil, DropoffTime: nil, TripDistance: f64(1), PULocationID: i64(1), DOLocationID: i64(2),
			FareAmount: f64(5), TotalAmount: f64(6)},
	}))

	recs, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NotNil(t, recs[0].PickupTime)
	assert.True(t, recs[0].PickupTime.Equal(epoch))
	assert.Nil(t, recs[1].PickupTime)
	assert.Nil(t, recs[1].DropoffTime)
}

func TestReadFile_MissingColumn(t *testing.T) {
	t.Parallel()

	type partial struct {
		PickupTime  time.Time `parquet:"tpep_pickup_datetime,timestamp(microsecond)"`
		DropoffTime time.Time `parquet:"tpep_dropoff_datetime,timestamp(microsecond)"`
		Distance    float64   `parquet:"trip_distance"`
	}
	path := filepath.Join(t.TempDir(), "broken.parquet")
	require.NoError(t, parquet.WriteFile(path, []partial{{PickupTime: time.Now(), DropoffTime: time.Now(), Distance: 1}}))

	_, err := ReadFile(context.Background(), path)
	var se *etlerr.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, schema.ColPickupZoneID, se.Column)
	assert.Equal(t, path, se.Source)
}

func TestReadFile_NotParquet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "junk.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not a parquet file"), 0o644))
	_, err := ReadFile(context.Background(), path)
	require.Error(t, err)
}

func TestWriteTrips_RoundTrip(t *testing.T) {
	t.Parallel()

	pu := time.Date(2024, 3, 1, 23, 59, 1, 0, time.UTC)
	recs := []schema.Record{
		{
			PickupTime: schema.Time(pu), DropoffTime: schema.Time(pu.Add(15 * time.Minute)),
			PickupZoneID: schema.Int(1), DropoffZoneID: schema.Int(263), TripDistance: schema.Float(2.25),
			FareAmount: schema.Float(11), TotalAmount: schema.Float(14.8), TripDurationMinutes: 15,
			PickupZone: schema.Zone{Name: schema.String("Newark Airport")}, TimeBucketPickup: schema.BucketNight,
		},
		{
			PickupTime: schema.Time(pu), DropoffTime: schema.Time(pu.Add(time.Minute)),
			PickupZoneID: schema.Int(999), DropoffZoneID: schema.Int(1), TripDistance: schema.Float(1),
			FareAmount: schema.Float(5), TotalAmount: schema.Float(6), TripDurationMinutes: 1,
			TimeBucketPickup: schema.BucketNight,
		},
	}
	cols := append(append([]string{}, schema.RawColumns...), schema.ColTripDuration, schema.ColZoneNamePickup, schema.ColTimeBucketPickup)

	path := filepath.Join(t.TempDir(), "out.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteTrips(f, cols, recs))
	require.NoError(t, f.Close())

	type outRow struct {
		PickupTime     time.Time `parquet:"pickup_time,optional,timestamp(microsecond)"`
		PickupZoneID   *int64    `parquet:"pickup_zone_id"`
		PassengerCount *int64    `parquet:"passenger_count"`
		FareAmount     *float64  `parquet:"fare_amount"`
		Duration       *float64  `parquet:"trip_duration_minutes"`
		ZoneName       *string   `parquet:"zone_name_pickup"`
		Bucket         *string   `parquet:"time_of_day_bucket_pickup"`
	}
	rows, err := parquet.ReadFile[outRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].PickupTime.Equal(pu))
	assert.Equal(t, int64(1), *rows[0].PickupZoneID)
	assert.Nil(t, rows[0].PassengerCount)
	assert.Equal(t, 11.0, *rows[0].FareAmount)
	assert.Equal(t, 15.0, *rows[0].Duration)
	assert.Equal(t, "Newark Airport", *rows[0].ZoneName)
	assert.Equal(t, "night", *rows[0].Bucket)
	assert.Nil(t, rows[1].ZoneName)
	assert.Equal(t, int64(999), *rows[1].PickupZoneID)
}

func TestSchemaColumnsAreSortedLeaves(t *testing.T) {
	t.Parallel()

	sch := Schema([]string{schema.ColTotalAmount, schema.ColPickupTime, schema.ColBoroughDropoff})
	var names []string
	for _, f := range sch.Fields() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{schema.ColBoroughDropoff, schema.ColPickupTime, schema.ColTotalAmount}, names)
}
