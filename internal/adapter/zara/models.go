package zara

// AvailabilityResponse is the payload of the Zara availability endpoint.
type AvailabilityResponse struct {
	SkusAvailability []SkuAvailability `json:"skusAvailability"`
}

type SkuAvailability struct {
	Sku          int64  `json:"sku"`
	Availability string `json:"availability"`
}
