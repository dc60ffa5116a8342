package sales

// lineAmount is the contribution of one line to the subtotal.
func lineAmount(unitPrice float64, quantity int) float64 {
	return unitPrice * float64(quantity)
}

// computeTotals derives tax and total from a subtotal at TaxRate.
func computeTotals(subtotal float64) (tax, total float64) {
	tax = subtotal * TaxRate
	total = subtotal * (1 + TaxRate)
	return tax, total
}

// Summarize returns the sum of subtotals, taxes and totals of the given sales.
func Summarize(sales []*Sale) SalesMetadata {
	md := SalesMetadata{}
	for _, s := range sales {
		md.Quantity++
		md.Subtotal += s.Subtotal
		md.Tax += s.Tax
		md.TotalAmount += s.Total
	}
	return md
}
