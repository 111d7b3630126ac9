package pricing

// Candidate lists observed in upstream catalog payloads, in priority order.
var (
	CartPriceRules = []AmountRule{
		Field("price"),
		Field("priceAmount"),
		Field("price_value"),
		Field("priceValue"),
		Field("priceInclTax"),
		Field("priceExclTax"),
		Field("price_inc_tax"),
		Field("price_ex_tax"),
		Field("defaultPrice"),
		Field("amount"),
		Field("total"),
	}

	VariantCostRules = []AmountRule{
		Field("price"),
		Field("retailPrice"),
		Field("priceAmount"),
		Field("priceInclTax"),
		Field("priceExclTax"),
	}

	ProductCostRules = []AmountRule{
		Field("price"),
		Field("priceAmount"),
		Field("defaultPrice"),
	}

	// ListingPriceRules read a product's own price object, which may be pre-rounded by the catalog.
	ListingPriceRules = []AmountRule{
		Field("amount"),
		Field("unitAmount"),
		Field("value"),
		Field("total"),
		Field("price"),
		Field("raw", "unitAmount"),
		Field("raw", "price"),
	}

	QuoteAmountRules = []AmountRule{
		Field("amount"),
		Field("unitAmount"),
		Field("value"),
		Field("price"),
		Field("unitPrice"),
		Field("total"),
		Field("raw", "unitAmount"),
		Field("raw", "unitPrice"),
		Field("raw", "price"),
	}

	QuoteQuantityRules = []AmountRule{
		Field("quantity"),
		Field("qty"),
		Field("minimumQuantity"),
		Field("minQuantity"),
		Field("raw", "quantity"),
		Field("raw", "qty"),
		Field("raw", "minimumQuantity"),
		Field("raw", "minQuantity"),
	}

	QuoteTotalRules = []AmountRule{
		Field("total"),
		Field("valueTotal"),
		Field("raw", "total"),
		Field("raw", "totalAmount"),
		Field("raw", "totalPrice"),
		Field("raw", "price"),
	}

	CurrencyRules = []CurrencyRule{
		CurrencyField("currency"),
		CurrencyField("currencyCode"),
		CurrencyField("priceCurrency"),
		CurrencyField("price", "currency"),
		CurrencyField("price", "currencyCode"),
		CurrencyField("price", "currency_symbol"),
		CurrencyField("currency_symbol"),
	}
)
