package domain

type TransactionType string

const (
	TransactionTypeSale     TransactionType = "sale"
	TransactionTypeExchange TransactionType = "exchange"
	TransactionTypeDonation TransactionType = "donation"
	TransactionTypeMixed    TransactionType = "mixed"
)

const ProductStatusActive = "active"

// Product is the read-only view of a catalog listing.
type Product struct {
	ID              string
	OwnerID         string
	Title           string
	Price           float64
	TransactionType TransactionType
	Status          string
}

func (p *Product) IsActive() bool {
	return p.Status == "" || p.Status == ProductStatusActive
}

// AcceptsCounterpart reports whether the product can be swapped for another product.
func (p *Product) AcceptsCounterpart() bool {
	return p.TransactionType == TransactionTypeExchange || p.TransactionType == TransactionTypeMixed
}

func (p *Product) IsDonation() bool {
	return p.TransactionType == TransactionTypeDonation
}
