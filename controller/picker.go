package controller

import (
	"strings"

	"poi-map/markers"
	"poi-map/models"
)

// LabelBudget is the maximum length, in characters, of a picker label.
const LabelBudget = 80

const ellipsis = "..."

// PickerLabel renders "title (description)", cutting the description and
// appending an ellipsis inside the parenthesis when the label would exceed
// LabelBudget. A title longer than the budget is never cut.
func PickerLabel(title, description string) string {
	full := title + " (" + description + ")"
	if runeLen(full) <= LabelBudget {
		return full
	}
	keep := LabelBudget - runeLen(title) - runeLen(" (") - runeLen(ellipsis+")")
	if keep < 0 {
		keep = 0
	}
	desc := []rune(description)
	return title + " (" + string(desc[:keep]) + ellipsis + ")"
}

func runeLen(s string) int { return len([]rune(s)) }

func pickerEntries(rows []models.POI) []PickerEntry {
	entries := make([]PickerEntry, len(rows))
	for i, row := range rows {
		entries[i] = PickerEntry{ID: row.ID, Label: PickerLabel(row.Title, row.Description)}
	}
	return entries
}

func previewOf(row models.POI) *Preview {
	return &Preview{
		ID:          row.ID,
		Title:       row.Title,
		Category:    strings.Join(row.Category, markers.CategorySeparator),
		Description: row.Description,
	}
}
