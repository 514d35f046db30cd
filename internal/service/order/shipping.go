package order

import "strings"

const (
	FreeShippingThreshold = 15000
	FlatShippingFee       = 100
)

var allowedCities = map[string]struct{}{
	"kathmandu": {},
	"bhaktapur": {},
	"lalitpur":  {},
}

// ShippingCost is the single shipping policy implementation; every code
// path that needs a fee calls it so the results always agree.
func ShippingCost(city string, totalPrice float64) (float64, error) {
	if _, ok := allowedCities[strings.ToLower(city)]; !ok {
		return 0, ErrShippingUnavailable
	}
	if totalPrice >= FreeShippingThreshold {
		return 0, nil
	}
	return FlatShippingFee, nil
}
