package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"roombooking/internal/models"
)

// RoomConfig represents a single room in rooms.yaml.
type RoomConfig struct {
	Code            string   `yaml:"code"`
	Name            string   `yaml:"name"`
	TypeCode        string   `yaml:"type_code"`
	CapacityExam    int      `yaml:"capacity_exam"`
	CapacityLecture int      `yaml:"capacity_lecture"`
	CampusID        string   `yaml:"campus_id"`
	Active          *bool    `yaml:"active,omitempty"`
	Equipment       []string `yaml:"equipment,omitempty"`
}

// RoomDefaults are applied to rooms that omit a field.
type RoomDefaults struct {
	TypeCode string `yaml:"type_code"`
	CampusID string `yaml:"campus_id"`
}

// RoomsConfig is the root configuration for rooms.yaml.
type RoomsConfig struct {
	Rooms     []RoomConfig      `yaml:"rooms"`
	Defaults  RoomDefaults      `yaml:"defaults"`
	RoomTypes []string          `yaml:"room_types"`
	Campuses  []string          `yaml:"campuses"`
	Equipment map[string]string `yaml:"equipment"`
}

// LoadRoomsConfig loads and validates the room inventory file.
func LoadRoomsConfig(path string) (*RoomsConfig, error) {
	if path == "" {
		path = "configs/rooms.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}
	return ParseRoomsConfig(data)
}

// ParseRoomsConfig decodes, defaults and validates rooms.yaml content.
func ParseRoomsConfig(data []byte) (*RoomsConfig, error) {
	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rooms config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *RoomsConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms defined")
	}

	types := toSet(c.RoomTypes)
	campuses := toSet(c.Campuses)
	codes := make(map[string]bool)

	for i, room := range c.Rooms {
		if room.Code == "" {
			return fmt.Errorf("room[%d]: code is required", i)
		}
		if codes[room.Code] {
			return fmt.Errorf("room[%d]: duplicate code '%s'", i, room.Code)
		}
		codes[room.Code] = true

		if room.Name == "" {
			return fmt.Errorf("room[%d]: name is required", i)
		}
		if room.CapacityExam < 0 || room.CapacityLecture < 0 {
			return fmt.Errorf("room[%d]: capacity cannot be negative", i)
		}
		if len(types) > 0 && !types[room.TypeCode] {
			return fmt.Errorf("room[%d]: unknown type_code '%s'", i, room.TypeCode)
		}
		if len(campuses) > 0 && room.CampusID != "" && !campuses[room.CampusID] {
			return fmt.Errorf("room[%d]: unknown campus_id '%s'", i, room.CampusID)
		}
		for _, eq := range room.Equipment {
			if _, ok := c.Equipment[eq]; !ok {
				return fmt.Errorf("room[%d]: unknown equipment '%s'", i, eq)
			}
		}
	}

	return nil
}

func (c *RoomsConfig) applyDefaults() {
	for i := range c.Rooms {
		if c.Rooms[i].TypeCode == "" {
			c.Rooms[i].TypeCode = c.Defaults.TypeCode
		}
		if c.Rooms[i].CampusID == "" {
			c.Rooms[i].CampusID = c.Defaults.CampusID
		}
	}
}

// ToModels converts the inventory to room models. Rooms are active unless
// explicitly disabled.
func (c *RoomsConfig) ToModels() []models.Room {
	result := make([]models.Room, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		result = append(result, models.Room{
			Code:            r.Code,
			Name:            r.Name,
			TypeCode:        r.TypeCode,
			CapacityExam:    r.CapacityExam,
			CapacityLecture: r.CapacityLecture,
			CampusID:        r.CampusID,
			Active:          active,
		})
	}
	return result
}

// GetRoomByCode returns room config by code.
func (c *RoomsConfig) GetRoomByCode(code string) *RoomConfig {
	for i := range c.Rooms {
		if c.Rooms[i].Code == code {
			return &c.Rooms[i]
		}
	}
	return nil
}

// String returns a summary of the configuration.
func (c *RoomsConfig) String() string {
	active := 0
	for _, r := range c.ToModels() {
		if r.Active {
			active++
		}
	}
	return fmt.Sprintf("RoomsConfig: %d rooms (%d active), %d campuses", len(c.Rooms), active, len(c.Campuses))
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
