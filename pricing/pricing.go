// Package pricing holds the per-type product schedules and derives order
// totals from selected line items. Totals are advisory; no payment processing
// happens here or anywhere else in the system.
package pricing

import (
	"fmt"

	"commissionflow/catalog"
)

// Product is one orderable SKU with a flat per-unit price.
type Product struct {
	ID    string
	Label string
	Sub   string
	Price int64
}

// SKU identifiers for the flowing sand line.
const (
	SKUCardBox  = "CARD_BOX"
	SKUCharmBox = "CHARM_BOX"
)

// SKU identifiers for the screenshot line.
const (
	SKURaw          = "S_RAW"
	SKUAvatar       = "S_AVATAR"
	SKUID916        = "S_ID_9_16"
	SKUWallMobile   = "S_WALL_MOBILE"
	SKUWallPC       = "S_WALL_PC"
	SKUCollage2     = "S_COLLAGE_2"
	SKUCollage3     = "S_COLLAGE_3"
	SKUDuoID        = "S_DUO_ID"
	SKUDuoPC        = "S_DUO_PC"
	SKUCoupleMobile = "S_COUPLE_MOBILE"
	SKUClubSpecial  = "S_CLUB_SPECIAL"
)

// CustomAddOnPrice is the flat price of the flowing sand 客製化 add-on. It is
// not a SKU: it is toggled, not counted.
const CustomAddOnPrice int64 = 500

var flowingSandProducts = []Product{
	{ID: SKUCardBox, Label: "名片流麻（7x10cm）", Price: 400},
	{ID: SKUCharmBox, Label: "吊飾流麻（4x7cm）", Price: 350},
}

var screenshotProducts = []Product{
	{ID: SKURaw, Label: "顯卡直出證件照", Price: 20},
	{ID: SKUAvatar, Label: "頭貼（1:1）", Sub: "（可加ID）", Price: 25},
	{ID: SKUID916, Label: "證件照（9:16）", Price: 25},
	{ID: SKUWallMobile, Label: "手機桌布（9:16頭頂留空）", Sub: "（人像風/意境風）", Price: 25},
	{ID: SKUWallPC, Label: "電腦桌布", Sub: "（人像風/意境風）", Price: 25},
	{ID: SKUCollage2, Label: "2格出框拼貼", Price: 50},
	{ID: SKUCollage3, Label: "3格出框拼貼", Price: 100},
	{ID: SKUDuoID, Label: "雙人證件照", Price: 30},
	{ID: SKUDuoPC, Label: "雙人電腦桌布", Price: 40},
	{ID: SKUCoupleMobile, Label: "情侶手機桌布", Price: 50},
	{ID: SKUClubSpecial, Label: "社團特殊委託項目", Price: 10},
}

var appearanceChoices = map[string][]string{
	SKUCollage2: {
		"是，已儲存雲端預設外觀。",
		"店主搭—2格同外觀",
		"店主搭—2格不同外觀",
	},
	SKUCollage3: {
		"是，已儲存雲端預設外觀。",
		"店主搭—3格同外觀",
		"店主搭—3格不同外觀",
	},
}

// Selection captures the line items a client picked on the request form.
// Quantities maps SKU id to unit count; unknown ids and non-positive counts
// contribute nothing to the total. CustomAddOn applies only to the flowing
// sand line. AppearanceOptions records the required choice for collage SKUs,
// keyed by SKU id.
type Selection struct {
	Quantities        map[string]int
	CustomAddOn       bool
	AppearanceOptions map[string]string
}

// Quantity returns the selected count for a SKU, zero when absent.
func (s Selection) Quantity(sku string) int {
	q := s.Quantities[sku]
	if q < 0 {
		return 0
	}
	return q
}

// Products returns the schedule for t in display order. The slice is a copy.
func Products(t catalog.Type) []Product {
	var src []Product
	switch t {
	case catalog.TypeFlowingSand:
		src = flowingSandProducts
	case catalog.TypeScreenshot:
		src = screenshotProducts
	default:
		return nil
	}
	out := make([]Product, len(src))
	copy(out, src)
	return out
}

// UnitPrice returns the per-unit price for a SKU of t, zero for unknown SKUs.
func UnitPrice(t catalog.Type, sku string) int64 {
	for _, p := range Products(t) {
		if p.ID == sku {
			return p.Price
		}
	}
	return 0
}

// Total sums price×quantity over all selected products of t, plus the flat
// add-on when toggled on a flowing sand selection. An empty selection totals
// zero; callers treat zero as "no items chosen" and reject it before
// submission. Total itself never fails.
func Total(t catalog.Type, sel Selection) int64 {
	var total int64
	for _, p := range Products(t) {
		total += p.Price * int64(sel.Quantity(p.ID))
	}
	if t == catalog.TypeFlowingSand && sel.CustomAddOn {
		total += CustomAddOnPrice
	}
	return total
}

// RequiresAppearance reports whether a SKU needs an appearance option chosen
// whenever its quantity is positive.
func RequiresAppearance(sku string) bool {
	_, ok := appearanceChoices[sku]
	return ok
}

// AppearanceChoices returns the fixed option list for a collage SKU, nil for
// SKUs that carry no option.
func AppearanceChoices(sku string) []string {
	src, ok := appearanceChoices[sku]
	if !ok {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// ValidAppearance reports whether choice is one of the fixed options for sku.
func ValidAppearance(sku, choice string) bool {
	for _, opt := range appearanceChoices[sku] {
		if opt == choice {
			return true
		}
	}
	return false
}

// Itemize renders one human-readable line per selected product, with quantity
// and subtotal, in schedule order. Collage appearance options are annotated on
// their own indented line. The add-on, when toggled, closes the list.
func Itemize(t catalog.Type, sel Selection) []string {
	var lines []string
	for _, p := range Products(t) {
		qty := sel.Quantity(p.ID)
		if qty == 0 {
			continue
		}
		line := fmt.Sprintf("- %s x %d ($%d)", p.Label, qty, p.Price*int64(qty))
		if opt := sel.AppearanceOptions[p.ID]; RequiresAppearance(p.ID) && opt != "" {
			line += fmt.Sprintf("\n   └── 外觀選項：%s", opt)
		}
		lines = append(lines, line)
	}
	if t == catalog.TypeFlowingSand && sel.CustomAddOn {
		lines = append(lines, fmt.Sprintf("【加購】：客製化 (+$%d)", CustomAddOnPrice))
	}
	return lines
}
