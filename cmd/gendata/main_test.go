package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCoversEverySecond(t *testing.T) {
	occupied := Schedule(rand.New(rand.NewSource(1)), 3600, 3)
	require.Len(t, occupied, 3600)
	for _, room := range occupied {
		assert.True(t, room >= -1 && room < 3)
	}
}

func TestSimulatePIROnlyWhenOccupied(t *testing.T) {
	start := time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC)
	occupied := make([]int, 600)
	for i := 300; i < 600; i++ {
		occupied[i] = 1
	}

	readings := Simulate(rand.New(rand.NewSource(7)), start, occupied, 0)
	require.NotEmpty(t, readings)

	var prev time.Time
	for _, r := range readings {
		s := int(r.Timestamp.Sub(start) / time.Second)
		if occupied[s] != 0 {
			assert.Zero(t, r.PIR, "pir fired at %d while room was empty", s)
		}
		assert.True(t, r.Timestamp.After(prev))
		prev = r.Timestamp
	}
	assert.Greater(t, readings[len(readings)/2].CO2, 0.0)
}
