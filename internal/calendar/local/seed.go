package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Cefalo/quick-meet/internal/persistence"
)

// RoomSeed is one room entry of a seed file.
type RoomSeed struct {
	ID          string `yaml:"id"`
	Email       string `yaml:"email"`
	Name        string `yaml:"name"`
	Domain      string `yaml:"domain"`
	Floor       string `yaml:"floor"`
	Seats       int    `yaml:"seats"`
	Description string `yaml:"description"`
}

// SeedFile lists the rooms served by the local provider. Rooms without a
// domain inherit Domain.
type SeedFile struct {
	Domain string     `yaml:"domain"`
	Rooms  []RoomSeed `yaml:"rooms"`
}

// ParseSeed decodes a YAML seed document and checks every room.
func ParseSeed(r io.Reader) (SeedFile, error) {
	var seed SeedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return SeedFile{}, nil
		}
		return SeedFile{}, fmt.Errorf("decode room seed: %w", err)
	}

	seen := make(map[string]bool, len(seed.Rooms))
	for i := range seed.Rooms {
		room := &seed.Rooms[i]
		room.Email = strings.ToLower(strings.TrimSpace(room.Email))
		if room.Domain == "" {
			room.Domain = seed.Domain
		}
		if room.ID == "" {
			room.ID = room.Email
		}
		switch {
		case room.Email == "":
			return SeedFile{}, fmt.Errorf("room %d: email is required", i+1)
		case room.Name == "":
			return SeedFile{}, fmt.Errorf("room %s: name is required", room.Email)
		case room.Domain == "":
			return SeedFile{}, fmt.Errorf("room %s: domain is required", room.Email)
		case room.Seats <= 0:
			return SeedFile{}, fmt.Errorf("room %s: seats must be positive", room.Email)
		case seen[room.Email]:
			return SeedFile{}, fmt.Errorf("room %s: listed twice", room.Email)
		}
		seen[room.Email] = true
	}
	return seed, nil
}

// LoadSeedFile reads and parses the seed file at path.
func LoadSeedFile(path string) (SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("open room seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// SeedRooms upserts every room of seed and returns how many were written.
func SeedRooms(ctx context.Context, repo persistence.RoomRepository, seed SeedFile) (int, error) {
	for i, room := range seed.Rooms {
		err := repo.UpsertRoom(ctx, persistence.Room{
			ID:          room.ID,
			Email:       room.Email,
			Name:        room.Name,
			Domain:      room.Domain,
			Floor:       room.Floor,
			Seats:       room.Seats,
			Description: room.Description,
		})
		if err != nil {
			return i, fmt.Errorf("seed room %s: %w", room.Email, err)
		}
	}
	return len(seed.Rooms), nil
}
