package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatveev/upsmon/pkg/models"
)

func testReading(n int) models.Reading {
	v := float64(n)

	return models.Reading{
		InputVoltage:   v,
		OutputVoltage:  v,
		BatteryVoltage: v,
		Frequency:      v,
		InputFrequency: v,
		BatteryLevel:   n,
		LoadPower:      n,
		LoadPercent:    n,
		Temperature:    v,
		Status:         models.StatusOnline,
		CapturedAt:     time.Now(),
	}
}

func TestStoreEmptySnapshot(t *testing.T) {
	store := NewStore()
	snap := store.Snapshot()

	assert.Nil(t, snap.Reading)
	assert.Empty(t, snap.Alarms)
	assert.Equal(t, models.ConnectionConnecting, snap.Connection)
	assert.NotEmpty(t, snap.Uptime)
}

func TestStoreUpdateAndSnapshot(t *testing.T) {
	store := NewStore()

	alarms := models.AlarmSet{{Condition: models.AlarmHighLoad, Metric: "load_percent", Value: 95}}
	store.Update(testReading(95), alarms)

	snap := store.Snapshot()
	require.NotNil(t, snap.Reading)
	assert.InDelta(t, 95.0, snap.Reading.InputVoltage, 0.001)
	assert.Equal(t, models.ConnectionConnected, snap.Connection)
	assert.True(t, snap.Alarms.Contains(models.AlarmHighLoad))
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.Update(testReading(10), nil)

	snap := store.Snapshot()
	snap.Reading.InputVoltage = 999

	// Mutating the returned snapshot must not leak into the store.
	assert.InDelta(t, 10.0, store.Snapshot().Reading.InputVoltage, 0.001)
}

func TestStoreRetainsReadingWhileDegraded(t *testing.T) {
	store := NewStore()
	store.Update(testReading(42), nil)

	store.MarkDegraded()
	snap := store.Snapshot()
	require.NotNil(t, snap.Reading)
	assert.InDelta(t, 42.0, snap.Reading.InputVoltage, 0.001)
	assert.Equal(t, models.ConnectionDegraded, snap.Connection)

	store.MarkReconnecting()
	assert.Equal(t, models.ConnectionReconnecting, store.Snapshot().Connection)

	store.MarkConnecting()
	assert.Equal(t, models.ConnectionConnecting, store.Snapshot().Connection)

	// A fresh poll restores connected status and replaces the reading.
	store.Update(testReading(50), nil)
	snap = store.Snapshot()
	assert.Equal(t, models.ConnectionConnected, snap.Connection)
	assert.InDelta(t, 50.0, snap.Reading.InputVoltage, 0.001)
}

func TestStoreConcurrentReadersNeverSeeTornReading(t *testing.T) {
	store := NewStore()
	store.Update(testReading(0), nil)

	done := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 1; i <= 1000; i++ {
			store.Update(testReading(i), nil)
		}

		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				snap := store.Snapshot()
				require.NotNil(t, snap.Reading)

				// Every field was written from the same poll, so a
				// consistent snapshot has them all equal.
				n := snap.Reading.BatteryLevel
				assert.InDelta(t, float64(n), snap.Reading.InputVoltage, 0.001)
				assert.InDelta(t, float64(n), snap.Reading.Temperature, 0.001)
				assert.Equal(t, n, snap.Reading.LoadPercent)

				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
}
