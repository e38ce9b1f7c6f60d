package workflow

import (
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"estatechain/server/internal/models"
)

// ValidateDeed checks deed content before it is sent to the verification
// contract.
func ValidateDeed(deed []byte) (string, error) {
	if !utf8.Valid(deed) {
		return "", models.NewValidationError("deed", "must be UTF-8 text")
	}
	text := string(deed)
	if strings.TrimSpace(text) == "" {
		return "", models.NewValidationError("deed", "must not be empty")
	}
	return text, nil
}

// ParseRegistration converts seller input into mint arguments. The token URI
// is left empty; it is only known after pinning.
func ParseRegistration(propertyID uint64, form models.RegistrationForm) (models.MintRequest, error) {
	req := models.MintRequest{PropertyID: propertyID}
	if propertyID == 0 {
		return req, models.NewValidationError("property_id", "must be a positive integer")
	}

	req.Description = strings.TrimSpace(form.Description)
	if req.Description == "" {
		return req, models.NewValidationError("description", "must not be empty")
	}
	req.Location = strings.TrimSpace(form.Location)
	if req.Location == "" {
		return req, models.NewValidationError("location", "must not be empty")
	}

	price, err := ParsePrice(form.Price)
	if err != nil {
		return req, err
	}
	req.Price = price

	if req.Storeys, err = parseCount("storeys", form.Storeys); err != nil {
		return req, err
	}
	if req.LandSize, err = parseCount("land_size", form.LandSize); err != nil {
		return req, err
	}
	if req.PropertyTaxes, err = parseCount("property_taxes", form.PropertyTaxes); err != nil {
		return req, err
	}

	if req.PropertyType, err = models.ParsePropertyType(form.PropertyType); err != nil {
		return req, err
	}
	if req.BuildingType, err = models.ParseBuildingType(form.BuildingType); err != nil {
		return req, err
	}
	if req.ParkingType, err = models.ParseParkingType(form.ParkingType); err != nil {
		return req, err
	}

	return req, nil
}

// ParsePrice parses a non-negative integer amount in the smallest currency
// unit. Amounts beyond uint64 are accepted.
func ParsePrice(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, models.NewValidationError("price", "is required")
	}
	price, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, models.NewValidationError("price", "%q is not an integer", value)
	}
	if price.Sign() < 0 {
		return nil, models.NewValidationError("price", "must not be negative")
	}
	if price.BitLen() > 256 {
		return nil, models.NewValidationError("price", "exceeds 256 bits")
	}
	return price, nil
}

func parseCount(field, value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, models.NewValidationError(field, "is required")
	}
	if strings.HasPrefix(value, "-") {
		return 0, models.NewValidationError(field, "must not be negative")
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, models.NewValidationError(field, "%q is not a non-negative integer", value)
	}
	return n, nil
}

// ParsePropertyID parses a positive property identifier.
func ParsePropertyID(value string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("property_id", "%q is not a positive integer", value)
	}
	return id, nil
}
