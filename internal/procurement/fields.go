package procurement

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	// AreaKey is the override key of the composite min/max area field.
	AreaKey = "area"

	aiPrefix   = "ai_"
	dash       = "-"
	areaUnit   = " м²"
	currency   = " ₽"
	millionSfx = "М"
	dateLength = 10
)

var (
	pricePrinter = message.NewPrinter(language.Russian)
	million      = decimal.NewFromInt(1_000_000)
)

// Field describes one row of the review workspace.
type Field struct {
	// Key is the record attribute the field reads (AreaKey for the composite).
	Key   string
	Label string

	value   func(ReviewItem) (string, bool)
	display func(ReviewItem) string
}

// OverrideKey is the name overrides for this field are stored under: the
// attribute key without its "ai_" prefix.
func (f Field) OverrideKey() string {
	if f.Key == AreaKey {
		return AreaKey
	}
	return strings.TrimPrefix(f.Key, aiPrefix)
}

// AIValue returns the extracted value as plain text and whether it exists.
func (f Field) AIValue(item ReviewItem) (string, bool) {
	return f.value(item)
}

// Display returns the text shown in the workspace's AI column.
func (f Field) Display(item ReviewItem) string {
	if f.display != nil {
		return f.display(item)
	}
	if v, ok := f.value(item); ok {
		return v
	}
	return dash
}

func valueField(key, label string, get func(ReviewItem) Value) Field {
	return Field{
		Key:   key,
		Label: label,
		value: func(item ReviewItem) (string, bool) {
			v := get(item)
			return v.String(), v.Valid()
		},
	}
}

// Fields is the ordered catalogue rendered in the workspace.
var Fields = []Field{
	valueField("ai_zakupka_name", "Название", func(i ReviewItem) Value { return i.ZakupkaName }),
	valueField("ai_city", "Город", func(i ReviewItem) Value { return i.City }),
	valueField("ai_address", "Адрес", func(i ReviewItem) Value { return i.Address }),
	{
		Key:   "initial_price",
		Label: "Начальная цена",
		value: func(i ReviewItem) (string, bool) {
			if !i.InitialPrice.Valid {
				return "", false
			}
			return i.InitialPrice.Decimal.String(), true
		},
		display: func(i ReviewItem) string { return FormatPrice(i.InitialPrice) },
	},
	{
		Key:   AreaKey,
		Label: "Площадь",
		value: func(i ReviewItem) (string, bool) { return FormatArea(i.AreaMin, i.AreaMax) },
	},
	valueField("ai_rooms", "Комнаты", func(i ReviewItem) Value { return i.Rooms }),
	valueField("ai_floor", "Этаж", func(i ReviewItem) Value { return i.Floor }),
	valueField("ai_building_floors_min", "Этажность здания", func(i ReviewItem) Value { return i.BuildingFloorsMin }),
	valueField("ai_year_build", "Год постройки", func(i ReviewItem) Value { return i.YearBuild }),
	valueField("ai_wear_percent", "Износ %", func(i ReviewItem) Value { return i.WearPercent }),
	valueField("ai_zakazchik", "Заказчик", func(i ReviewItem) Value { return i.Zakazchik }),
}

// FormatArea combines the min/max area pair. Zero counts as missing.
func FormatArea(areaMin, areaMax *float64) (string, bool) {
	hasMin := areaMin != nil && *areaMin != 0
	hasMax := areaMax != nil && *areaMax != 0
	switch {
	case hasMin && hasMax && *areaMin != *areaMax:
		return FormatNumber(*areaMin) + areaUnit + " - " + FormatNumber(*areaMax) + areaUnit, true
	case hasMin:
		return FormatNumber(*areaMin) + areaUnit, true
	case hasMax:
		return FormatNumber(*areaMax) + areaUnit, true
	default:
		return "", false
	}
}

// FormatPrice renders a price with Russian digit grouping and a rouble sign.
// Missing and zero prices render as a dash.
func FormatPrice(price decimal.NullDecimal) string {
	if !price.Valid || price.Decimal.IsZero() {
		return dash
	}
	f, _ := price.Decimal.Float64()
	return pricePrinter.Sprint(number.Decimal(f, number.MaxFractionDigits(3))) + currency
}

// FormatMillions renders the compact list price, e.g. "4.5М".
func FormatMillions(price decimal.NullDecimal) string {
	if !price.Valid || price.Decimal.IsZero() {
		return dash
	}
	return price.Decimal.Div(million).StringFixed(1) + millionSfx
}

// TruncateDate keeps the date part of an ISO timestamp.
func TruncateDate(value string) string {
	runes := []rune(value)
	if len(runes) > dateLength {
		return string(runes[:dateLength])
	}
	return value
}

// OrDash substitutes a dash for empty text.
func OrDash(value string) string {
	if value == "" {
		return dash
	}
	return value
}
