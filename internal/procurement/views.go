package procurement

import "strings"

// Placeholder texts shown instead of empty collections.
const (
	NoticePlaceholder  = "Нет данных. Нажмите «i», чтобы загрузить закупки с ЕИС"
	ReviewPlaceholder  = "Нет закупок для проверки.\nДобавьте их на Stage 1."
	EmptyWorkspaceText = "Выберите закупку слева для проверки"
	NoTextPlaceholder  = "Текст закупки отсутствует..."
	overrideArrow      = "→ "
)

// LinkFunc builds the public registry link for a registry number.
type LinkFunc func(regNumber string) string

// NoticeRow is one line of the stage-1 table. Placeholder rows have an empty
// Key and carry only the Placeholder text.
type NoticeRow struct {
	Key         string
	Link        string
	UpdateDate  string
	BidEndDate  string
	Description string
	Checked     bool
	Placeholder string
}

// IsPlaceholder reports whether the row stands in for an empty list.
func (r NoticeRow) IsPlaceholder() bool { return r.Key == "" }

// NoticeTable describes the stage-1 table body.
type NoticeTable struct {
	Rows []NoticeRow
}

// BuildNoticeTable produces one row per notice keyed by its registry number,
// or a single placeholder row when there are no notices.
func BuildNoticeTable(notices []Notice, checked func(regNumber string) bool, link LinkFunc) NoticeTable {
	if len(notices) == 0 {
		return NoticeTable{Rows: []NoticeRow{{Placeholder: NoticePlaceholder}}}
	}
	rows := make([]NoticeRow, 0, len(notices))
	for _, n := range notices {
		rows = append(rows, NoticeRow{
			Key:         n.RegNumber,
			Link:        link(n.RegNumber),
			UpdateDate:  OrDash(TruncateDate(n.UpdateDate)),
			BidEndDate:  OrDash(n.BidEndDate),
			Description: OrDash(n.Description),
			Checked:     checked != nil && checked(n.RegNumber),
		})
	}
	return NoticeTable{Rows: rows}
}

// ReviewRow is one entry of the stage-2 list.
type ReviewRow struct {
	Key     string
	Summary string
	// Checked marks membership in the promotion set.
	Checked bool
	// Active marks the record open in the workspace.
	Active bool
}

// ReviewList describes the stage-2 list. Placeholder is set iff Rows is empty.
type ReviewList struct {
	Rows        []ReviewRow
	Placeholder string
}

// BuildReviewList renders the review items against the promotion set and the
// active record.
func BuildReviewList(items []ReviewItem, promotion *SelectionSet, active string) ReviewList {
	if len(items) == 0 {
		return ReviewList{Placeholder: ReviewPlaceholder}
	}
	rows := make([]ReviewRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, ReviewRow{
			Key:     item.RegNumber,
			Summary: reviewSummary(item),
			Checked: promotion != nil && promotion.Has(item.RegNumber),
			Active:  active != "" && item.RegNumber == active,
		})
	}
	return ReviewList{Rows: rows}
}

func reviewSummary(item ReviewItem) string {
	city := "?"
	if item.City.Truthy() {
		city = item.City.String()
	}
	area := "?"
	if item.AreaMin != nil && *item.AreaMin != 0 {
		area = FormatNumber(*item.AreaMin)
	}
	return strings.Join([]string{city, area + areaUnit, FormatMillions(item.InitialPrice)}, " | ")
}

// FieldRow is one row of the workspace.
type FieldRow struct {
	// Key is the override key; Label the human name.
	Key   string
	Label string
	// AIValue is the raw extracted text handed to the edit modal; empty when absent.
	AIValue string
	// Display is what the AI column shows.
	Display     string
	Override    string
	HasOverride bool
}

// OverrideText is the override column with its arrow, or empty.
func (r FieldRow) OverrideText() string {
	if !r.HasOverride {
		return ""
	}
	return overrideArrow + r.Override
}

// Workspace describes the stage-2 detail view for one record.
type Workspace struct {
	RegNumber  string
	UpdateDate string
	Link       string
	Fields     []FieldRow
	Text       string
}

// BuildWorkspace renders every catalogue field of item against its overrides.
func BuildWorkspace(item ReviewItem, overrides Overrides, link LinkFunc) Workspace {
	rows := make([]FieldRow, 0, len(Fields))
	for _, f := range Fields {
		aiValue, _ := f.AIValue(item)
		row := FieldRow{
			Key:     f.OverrideKey(),
			Label:   f.Label,
			AIValue: aiValue,
			Display: f.Display(item),
		}
		if v, ok := overrides.Get(row.Key); ok {
			row.Override = v
			row.HasOverride = true
		}
		rows = append(rows, row)
	}
	text := item.CombinedText
	if text == "" {
		text = NoTextPlaceholder
	}
	ws := Workspace{
		RegNumber:  item.RegNumber,
		UpdateDate: TruncateDate(item.UpdateDate),
		Fields:     rows,
		Text:       text,
	}
	if link != nil {
		ws.Link = link(item.RegNumber)
	}
	return ws
}

// ModalPrefill picks the edit modal's initial text: the stored override, else
// the AI value, else nothing.
func ModalPrefill(overrides Overrides, key, aiValue string) string {
	if v, ok := overrides.Get(key); ok && v != "" {
		return v
	}
	return aiValue
}

// FindItem returns the review item with the given registry number.
func FindItem(items []ReviewItem, regNumber string) (ReviewItem, bool) {
	for _, item := range items {
		if item.RegNumber == regNumber {
			return item, true
		}
	}
	return ReviewItem{}, false
}
