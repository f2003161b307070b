package domain

// CurrencyAllowList is the set of ISO-4217 codes the service accepts.
// A deployment that needs more codes extends this list; it is not meant
// to be exhaustive of the standard.
var CurrencyAllowList = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
	"VND": true,
	"JPY": true,
	"SGD": true,
}

// IsAllowedCurrency reports whether code is a three-letter code on the
// active allow-list.
func IsAllowedCurrency(code string) bool {
	return CurrencyAllowList[code]
}
