package entities

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidPin  = errors.New("pin code must be exactly 6 digits")
	ErrMissingCrop = errors.New("crop name is empty")
)

var pinRe = regexp.MustCompile(`^\d{6}$`)

// ValidatePin accepts Indian postal PIN codes: exactly six ASCII digits.
func ValidatePin(pin string) error {
	if !pinRe.MatchString(pin) {
		return ErrInvalidPin
	}
	return nil
}

func ValidateCrop(crop string) error {
	if strings.TrimSpace(crop) == "" {
		return ErrMissingCrop
	}
	return nil
}

// Location is a geocoded postal code.
type Location struct {
	PinCode   string  `json:"pin_code"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
}
