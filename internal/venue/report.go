package venue

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseFill decodes an asynchronous venue fill callback. Venues disagree on
// field names, so lookup goes through path alternatives instead of a strict
// schema; the first present alternative wins.
func ParseFill(raw []byte) (Fill, error) {
	if !gjson.ValidBytes(raw) {
		return Fill{}, fmt.Errorf("venue report is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	fill := Fill{
		VenueOrderID: firstString(doc, "venue_order_id", "order_id", "orderId"),
		VenueExecID:  firstString(doc, "exec_id", "execution_id", "tradeId"),
		Quantity:     firstFloat(doc, "qty", "quantity", "filled_qty"),
		Price:        firstFloat(doc, "price", "fill_price", "avg_price"),
		Commission:   firstFloat(doc, "commission", "fee"),
		Venue:        firstString(doc, "venue", "exchange"),
		Raw:          append([]byte(nil), raw...),
	}
	if fill.VenueExecID == "" {
		return Fill{}, fmt.Errorf("venue report missing execution id")
	}
	if fill.Quantity <= 0 || fill.Price <= 0 {
		return Fill{}, fmt.Errorf("venue report has non-positive qty/price (qty=%v price=%v)", fill.Quantity, fill.Price)
	}
	return fill, nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() {
			return v.String()
		}
	}
	return ""
}

func firstFloat(doc gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() {
			return v.Float()
		}
	}
	return 0
}
