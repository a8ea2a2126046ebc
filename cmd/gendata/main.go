// Command gendata writes synthetic per-room sensor CSVs for a single occupant
// walking between rooms, in the raw shape the collector produces.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Room describes one simulated room and its sensor file
type Room struct {
	Name     string
	FileName string
	// EpochMillis writes timestamps as unix milliseconds instead of calendar text
	EpochMillis bool
}

var defaultRooms = []Room{
	{Name: "living", FileName: "living_sensors.csv"},
	{Name: "washitsu", FileName: "washitsu_sensors.csv", EpochMillis: true},
	{Name: "sleeping_room", FileName: "sleep_sensors.csv"},
}

// Reading is one sampled row of a room file
type Reading struct {
	Timestamp time.Time
	PIR       int
	CO2       float64
	Temp      float64
	Humidity  float64
}

// Schedule returns, for each second from start, the index of the occupied
// room. The occupant stays 2-10 minutes, with short gaps where no room is
// occupied.
func Schedule(rng *rand.Rand, seconds, rooms int) []int {
	out := make([]int, seconds)
	for i := 0; i < seconds; {
		stay := 120 + rng.Intn(481)
		room := rng.Intn(rooms)
		if rng.Intn(5) == 0 {
			room = -1
		}
		for j := 0; j < stay && i < seconds; j++ {
			out[i] = room
			i++
		}
	}
	return out
}

// Simulate samples one room roughly every second with jitter. PIR fires in
// bursts while the room is occupied; CO2 rises with occupancy and decays
// otherwise.
func Simulate(rng *rand.Rand, start time.Time, occupied []int, room int) []Reading {
	var readings []Reading
	co2 := 450.0
	for s, who := range occupied {
		here := who == room
		if here {
			co2 += 0.4 + rng.Float64()*0.2
		} else {
			co2 -= (co2 - 420) * 0.002
		}

		// occasional sensor dropouts
		if rng.Intn(20) == 0 {
			continue
		}

		pir := 0
		if here && rng.Intn(4) != 0 {
			pir = 1
		}
		hourAngle := float64(start.Add(time.Duration(s)*time.Second).Hour()) * math.Pi / 12
		jitter := time.Duration(rng.Intn(400)) * time.Millisecond
		readings = append(readings, Reading{
			Timestamp: start.Add(time.Duration(s)*time.Second + jitter),
			PIR:       pir,
			CO2:       co2 + rng.Float64()*4 - 2,
			Temp:      22 + 2*math.Sin(hourAngle-math.Pi/2) + float64(room)*0.3,
			Humidity:  55 + rng.Float64()*4 - 2,
		})
	}
	return readings
}

func main() {
	fs := flag.NewFlagSet("gendata", flag.ExitOnError)
	outputDir := fs.String("out", "test_data", "output directory")
	hours := fs.Float64("hours", 2, "simulated duration in hours")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	fs.Parse(os.Args[1:])

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Printf("Failed to create directory: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	start := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(*hours * float64(time.Hour)))
	occupied := Schedule(rng, int(*hours*3600), len(defaultRooms))

	var wg sync.WaitGroup
	for i, room := range defaultRooms {
		// each room draws from its own source so output is reproducible per seed
		roomRng := rand.New(rand.NewSource(*seed + int64(i) + 1))
		wg.Add(1)
		go func(i int, room Room) {
			defer wg.Done()
			readings := Simulate(roomRng, start, occupied, i)
			path := filepath.Join(*outputDir, room.FileName)
			if err := writeCSV(path, room, readings); err != nil {
				fmt.Printf("Failed to write %s: %v\n", room.FileName, err)
				return
			}
			fmt.Printf("Generated %s with %d records\n", room.FileName, len(readings))
		}(i, room)
	}
	wg.Wait()
	fmt.Println("All mocked data generated.")
}

func writeCSV(filename string, room Room, readings []Reading) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString("timestamp,pir_motion,co2,temperature,humidity\n"); err != nil {
		return err
	}

	for _, r := range readings {
		ts := r.Timestamp.Format("2006-01-02 15:04:05.000")
		if room.EpochMillis {
			ts = strconv.FormatInt(r.Timestamp.UnixMilli(), 10)
		}
		line := fmt.Sprintf("%s,%d,%.1f,%.2f,%.1f\n", ts, r.PIR, r.CO2, r.Temp, r.Humidity)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}

	return file.Sync()
}
