package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"exportappraiser/internal/models"
)

type InventorySnapshot struct {
	Vehicles  []models.VehicleRequest `json:"vehicles"`
	Total     int                     `json:"total"`
	Timestamp time.Time               `json:"timestamp"`
}

// SnapshotExpiry is how long a fetched inventory snapshot stays usable.
const SnapshotExpiry = time.Hour

// LoadSnapshot loads the cached inventory if it exists and is not expired
func LoadSnapshot(path string) (*InventorySnapshot, bool) {
	file, err := os.Open(path)
	if err != nil {
		fmt.Println("📁 No inventory cache found, will fetch fresh data")
		return nil, false
	}
	defer file.Close()

	var snapshot InventorySnapshot
	if err := json.NewDecoder(file).Decode(&snapshot); err != nil {
		fmt.Printf("❌ Error reading inventory cache: %v\n", err)
		return nil, false
	}

	// Check if cache is expired
	if time.Since(snapshot.Timestamp) > SnapshotExpiry {
		fmt.Printf("⏰ Inventory cache expired (%v old), will refresh\n", time.Since(snapshot.Timestamp).Round(time.Minute))
		return nil, false
	}

	fmt.Printf("✅ Loaded %d vehicles from cache (updated %v ago)\n",
		len(snapshot.Vehicles), time.Since(snapshot.Timestamp).Round(time.Minute))
	return &snapshot, true
}

// SaveSnapshot writes a fetched inventory to the cache file
func SaveSnapshot(path string, vehicles []models.VehicleRequest, total int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %v", err)
	}

	snapshot := InventorySnapshot{
		Vehicles:  vehicles,
		Total:     total,
		Timestamp: time.Now(),
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %v", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode cache: %v", err)
	}

	fmt.Printf("💾 Cached %d vehicles to %s\n", len(vehicles), path)
	return nil
}

// IsSnapshotExpired checks if the cache is expired without loading it
func IsSnapshotExpired(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return true // No cache file means expired
	}
	defer file.Close()

	var snapshot InventorySnapshot
	if err := json.NewDecoder(file).Decode(&snapshot); err != nil {
		return true // Corrupted cache means expired
	}

	return time.Since(snapshot.Timestamp) > SnapshotExpiry
}

// SnapshotAge returns the age of the cached inventory
func SnapshotAge(path string) (time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var snapshot InventorySnapshot
	if err := json.NewDecoder(file).Decode(&snapshot); err != nil {
		return 0, err
	}

	return time.Since(snapshot.Timestamp), nil
}
