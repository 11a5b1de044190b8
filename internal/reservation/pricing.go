package reservation

import "github.com/iliyamo/ticket-inventory/internal/model"

// Tax and fee rates in basis points of the subtotal.
const (
    TaxRateBP = 500
    FeeRateBP = 500
)

// Price computes the breakdown for qty units at unit (minor units). Tax
// and fee are rounded half-up to the minor unit.
func Price(unit int64, qty int) model.PriceBreakdown {
    subtotal := unit * int64(qty)
    tax := basisPoints(subtotal, TaxRateBP)
    fee := basisPoints(subtotal, FeeRateBP)
    return model.PriceBreakdown{
        UnitPrice: unit,
        Subtotal:  subtotal,
        Tax:       tax,
        Fee:       fee,
        Total:     subtotal + tax + fee,
    }
}

func basisPoints(v int64, bp int64) int64 {
    return (v*bp + 5000) / 10000
}
