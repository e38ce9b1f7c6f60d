package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PropertyType is the registry's property classification code.
type PropertyType uint8

const (
	PropertyTypeResidential PropertyType = iota
	PropertyTypeCommercial
	PropertyTypeAgricultural
	PropertyTypeOther
)

var propertyTypeNames = []string{"RESIDENTIAL", "COMMERCIAL", "AGRICULTURAL", "OTHER"}

// BuildingType is the registry's building classification code.
type BuildingType uint8

const (
	BuildingTypeDetached BuildingType = iota
	BuildingTypeSemiDetached
	BuildingTypeRowHouse
	BuildingTypeCondo
	BuildingTypeOther
)

var buildingTypeNames = []string{"DETACHED", "SEMI_DETACHED", "ROW_HOUSE", "CONDO", "OTHER"}

// ParkingType is the registry's parking classification code.
type ParkingType uint8

const (
	ParkingTypeGarage ParkingType = iota
	ParkingTypeDriveway
	ParkingTypeStreet
	ParkingTypeOther
)

var parkingTypeNames = []string{"GARAGE", "DRIVEWAY", "STREET", "OTHER"}

// EnumOption is one selectable value of an enumeration.
type EnumOption struct {
	Code uint8  `json:"code"`
	Name string `json:"name"`
}

func (t PropertyType) String() string { return enumName(propertyTypeNames, uint8(t)) }
func (t BuildingType) String() string { return enumName(buildingTypeNames, uint8(t)) }
func (t ParkingType) String() string  { return enumName(parkingTypeNames, uint8(t)) }

func (t PropertyType) Valid() bool { return int(t) < len(propertyTypeNames) }
func (t BuildingType) Valid() bool { return int(t) < len(buildingTypeNames) }
func (t ParkingType) Valid() bool  { return int(t) < len(parkingTypeNames) }

func (t PropertyType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (t BuildingType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (t ParkingType) MarshalText() ([]byte, error)  { return []byte(t.String()), nil }

func (t *PropertyType) UnmarshalText(text []byte) error {
	v, err := ParsePropertyType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *BuildingType) UnmarshalText(text []byte) error {
	v, err := ParseBuildingType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *ParkingType) UnmarshalText(text []byte) error {
	v, err := ParseParkingType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParsePropertyType accepts either the name ("COMMERCIAL") or the numeric code ("1").
func ParsePropertyType(s string) (PropertyType, error) {
	code, err := parseEnum("property_type", propertyTypeNames, s)
	return PropertyType(code), err
}

// ParseBuildingType accepts either the name ("CONDO") or the numeric code ("3").
func ParseBuildingType(s string) (BuildingType, error) {
	code, err := parseEnum("building_type", buildingTypeNames, s)
	return BuildingType(code), err
}

// ParseParkingType accepts either the name ("STREET") or the numeric code ("2").
func ParseParkingType(s string) (ParkingType, error) {
	code, err := parseEnum("parking_type", parkingTypeNames, s)
	return ParkingType(code), err
}

// PropertyTypeOptions lists every property type in code order.
func PropertyTypeOptions() []EnumOption { return enumOptions(propertyTypeNames) }

// BuildingTypeOptions lists every building type in code order.
func BuildingTypeOptions() []EnumOption { return enumOptions(buildingTypeNames) }

// ParkingTypeOptions lists every parking type in code order.
func ParkingTypeOptions() []EnumOption { return enumOptions(parkingTypeNames) }

func enumName(names []string, code uint8) string {
	if int(code) < len(names) {
		return names[code]
	}
	return fmt.Sprintf("UNKNOWN(%d)", code)
}

func enumOptions(names []string) []EnumOption {
	options := make([]EnumOption, len(names))
	for i, name := range names {
		options[i] = EnumOption{Code: uint8(i), Name: name}
	}
	return options
}

func parseEnum(field string, names []string, s string) (uint8, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return 0, NewValidationError(field, "a selection is required")
	}

	if code, err := strconv.ParseUint(value, 10, 8); err == nil {
		if int(code) >= len(names) {
			return 0, NewValidationError(field, "code %d is out of range 0..%d", code, len(names)-1)
		}
		return uint8(code), nil
	}

	normalized := strings.ToUpper(strings.ReplaceAll(value, "-", "_"))
	for i, name := range names {
		if name == normalized {
			return uint8(i), nil
		}
	}
	return 0, NewValidationError(field, "unknown value %q", value)
}
