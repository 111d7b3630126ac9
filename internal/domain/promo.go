package domain

import "strings"

const FreeOrderDiscount = 100

type PromoDiscount struct {
	Value int    `json:"value"`
	Code  string `json:"code"`
}

// IsFree reports whether the discount covers the whole order.
func (d PromoDiscount) IsFree() bool {
	return d.Value == FreeOrderDiscount
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Missing returns the JSON names of required fields that are blank.
func (a *ShippingAddress) Missing() []string {
	if a == nil {
		return []string{"name", "email", "address", "city", "postalCode", "country"}
	}
	fields := []struct {
		name  string
		value string
	}{
		{"name", a.Name},
		{"email", a.Email},
		{"address", a.Address},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
