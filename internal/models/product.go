package models

// Product is the normalized record every source produces. A product is only
// valid when both Title and Price are set; sources must return a failure
// result instead of a partial record.
type Product struct {
	Title           string  `json:"title"`
	Price           float64 `json:"price"`
	ImageURL        string  `json:"imageUrl,omitempty"`
	OriginalPrice   float64 `json:"originalPrice,omitempty"`
	DiscountPercent int     `json:"discountPercent,omitempty"`
}

// Valid reports whether the record satisfies the minimum contract.
func (p *Product) Valid() bool {
	return p != nil && p.Title != "" && p.Price > 0
}

// Credentials is the persisted token pair for the official API. The token
// manager is the sole writer; both fields are always persisted together.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
