package controller

import (
	"poi-map/filter"
	"poi-map/models"
)

// AddState is the state of the add-POI workflow.
type AddState int

const (
	AddIdle AddState = iota
	AwaitingMapClick
	FormOpen
)

func (s AddState) String() string {
	switch s {
	case AwaitingMapClick:
		return "awaiting_map_click"
	case FormOpen:
		return "form_open"
	default:
		return "idle"
	}
}

func (s AddState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// RemoveState is the state of the remove-POI workflow.
type RemoveState int

const (
	RemoveIdle RemoveState = iota
	PickerOpen
)

func (s RemoveState) String() string {
	if s == PickerOpen {
		return "picker_open"
	}
	return "idle"
}

func (s RemoveState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Form holds the values of the add form. Date is YYYY-MM-DD.
type Form struct {
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Category    []string `json:"category"`
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

func (f Form) clone() Form {
	f.Category = append([]string(nil), f.Category...)
	return f
}

// PickerEntry is one selectable row of the remove picker.
type PickerEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Preview describes the row selected in the remove picker.
type Preview struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Details []string    `json:"details,omitempty"`
}

// View is the snapshot returned for every event. Markers is only set when
// the marker layer was recomputed, which Rerender signals.
type View struct {
	AddState       AddState        `json:"add_state"`
	RemoveState    RemoveState     `json:"remove_state"`
	AddEnabled     bool            `json:"add_enabled"`
	RemoveEnabled  bool            `json:"remove_enabled"`
	Prompt         string          `json:"prompt,omitempty"`
	Form           *Form           `json:"form,omitempty"`
	Picker         []PickerEntry   `json:"picker,omitempty"`
	Selected       string          `json:"selected,omitempty"`
	Preview        *Preview        `json:"preview,omitempty"`
	Notice         *Notice         `json:"notice,omitempty"`
	Rerender       bool            `json:"rerender"`
	Markers        []models.Marker `json:"markers,omitempty"`
	CategoryCounts map[string]int  `json:"category_counts"`
	Filter         filter.Criteria `json:"filter"`
}

// Event is a named UI event. Only the fields relevant to Name are read.
type Event struct {
	Name string `json:"event"`

	// map.click
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// form.edit, add.submit
	Form *Form `json:"form,omitempty"`

	// remove.select, remove.submit
	ID string `json:"id,omitempty"`

	// filter.categories; null clears the category filter
	Categories []string `json:"categories"`

	// filter.dates
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Event names.
const (
	EventAddOpen          = "add.open"
	EventMapClick         = "map.click"
	EventFormEdit         = "form.edit"
	EventAddSubmit        = "add.submit"
	EventAddCancel        = "add.cancel"
	EventRemoveOpen       = "remove.open"
	EventRemoveSelect     = "remove.select"
	EventRemoveSubmit     = "remove.submit"
	EventRemoveCancel     = "remove.cancel"
	EventFilterCategories = "filter.categories"
	EventFilterDates      = "filter.dates"
)
