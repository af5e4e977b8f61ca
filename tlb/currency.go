package tlb

import (
	"math/big"

	"github.com/tonlight/tonlight/cell"
)

// CurrencyCollection is an amount of nanograms plus a dictionary of other
// currencies, kept as its raw root.
//
//	currencies$_ grams:Grams other:ExtraCurrencyCollection = CurrencyCollection;
type CurrencyCollection struct {
	Grams *big.Int
	Other *cell.Cell
}

// LoadCurrencyCollection reads a CurrencyCollection.
func LoadCurrencyCollection(s *cell.Slice) (CurrencyCollection, error) {
	grams, err := s.LoadVarUint(4)
	if err != nil {
		return CurrencyCollection{}, decodeErr("CurrencyCollection", err)
	}
	other, err := s.LoadMaybeRef()
	if err != nil {
		return CurrencyCollection{}, decodeErr("CurrencyCollection", err)
	}
	return CurrencyCollection{Grams: grams, Other: other}, nil
}

// Store writes the collection into b.
func (cc CurrencyCollection) Store(b *cell.Builder) {
	grams := cc.Grams
	if grams == nil {
		grams = new(big.Int)
	}
	b.StoreVarUint(grams, 4).StoreMaybeRef(cc.Other)
}
