package models

import (
	"fmt"
	"sort"
)

// CreditPackage is a purchasable bundle of credits.
type CreditPackage struct {
	Key     string
	Credits Credits
	Price   Money
	Name    string
}

// Description is the line shown on the hosted checkout page.
func (p CreditPackage) Description() string {
	return fmt.Sprintf("%d credits for AI photo generation", p.Credits)
}

var creditPackages = map[string]CreditPackage{
	"starter":  {Key: "starter", Credits: 10, Price: MustParseMoney("9.99", DefaultCurrency), Name: "Starter Pack"},
	"pro":      {Key: "pro", Credits: 50, Price: MustParseMoney("39.99", DefaultCurrency), Name: "Pro Pack"},
	"business": {Key: "business", Credits: 150, Price: MustParseMoney("99.99", DefaultCurrency), Name: "Business Pack"},
}

// LookupPackage resolves a catalog key.
func LookupPackage(key string) (CreditPackage, error) {
	pkg, ok := creditPackages[key]
	if !ok {
		return CreditPackage{}, fmt.Errorf("%w: %s", ErrInvalidCreditPackage, key)
	}
	return pkg, nil
}

// CreditPackages lists the catalog ordered by credit count.
func CreditPackages() []CreditPackage {
	out := make([]CreditPackage, 0, len(creditPackages))
	for _, p := range creditPackages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credits < out[j].Credits })
	return out
}
