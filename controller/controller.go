// Package controller drives the add and remove workflows of the map page. It
// is a pair of finite-state machines behind a dispatcher that serialises
// named UI events and answers each with a View snapshot.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"poi-map/filter"
	"poi-map/markers"
	"poi-map/metrics"
	"poi-map/models"
	"poi-map/schema"
	"poi-map/utils/errors"
)

// Prompt shown while waiting for the map click of the add workflow.
const PromptMapClick = "Click on the map to place the new POI."

// Store is the subset of the POI store the controller drives.
type Store interface {
	All() []models.POI
	Add(ctx context.Context, p models.POI) (string, error)
	Remove(ctx context.Context, id string) (models.POI, error)
	CategoryCounts() map[string]int
}

type transition func(c *Controller, ctx context.Context, ev Event, v *View) (string, error)

var transitions = map[string]transition{
	EventAddOpen:          (*Controller).addOpen,
	EventMapClick:         (*Controller).mapClick,
	EventFormEdit:         (*Controller).formEdit,
	EventAddSubmit:        (*Controller).addSubmit,
	EventAddCancel:        (*Controller).addCancel,
	EventRemoveOpen:       (*Controller).removeOpen,
	EventRemoveSelect:     (*Controller).removeSelect,
	EventRemoveSubmit:     (*Controller).removeSubmit,
	EventRemoveCancel:     (*Controller).removeCancel,
	EventFilterCategories: (*Controller).filterCategories,
	EventFilterDates:      (*Controller).filterDates,
}

// Controller holds the session state of the page.
type Controller struct {
	mu        sync.Mutex
	store     Store
	projector *markers.Projector
	logger    *zap.Logger

	add      AddState
	remove   RemoveState
	form     *Form
	picker   []PickerEntry
	selected string
	criteria filter.Criteria
}

func New(store Store, projector *markers.Projector, logger *zap.Logger) *Controller {
	return &Controller{store: store, projector: projector, logger: logger}
}

// Dispatch applies ev and returns the resulting view. Events that are not
// allowed in the current state fail with ErrInvalidTransition, and opening a
// workflow while the other one is open fails with ErrWorkflowBusy; neither
// changes state.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn, ok := transitions[ev.Name]
	if !ok {
		metrics.EventsTotal.WithLabelValues("unknown", "error").Inc()
		return c.viewLocked(), fmt.Errorf("%w: unknown event %q", errors.ErrInvalidTransition, ev.Name)
	}

	v := c.viewLocked()
	outcome, err := fn(c, ctx, ev, &v)
	if err != nil {
		outcome = "error"
		c.logger.Debug("Event rejected", zap.String("event", ev.Name), zap.Error(err))
	}
	metrics.EventsTotal.WithLabelValues(ev.Name, outcome).Inc()

	// the transition may have changed state after v was taken
	fresh := c.viewLocked()
	fresh.Notice, fresh.Rerender, fresh.Markers = v.Notice, v.Rerender, v.Markers
	return fresh, err
}

// Session returns the current view with the full marker layer.
func (c *Controller) Session() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.viewLocked()
	c.rerender(&v)
	return v
}

func (c *Controller) viewLocked() View {
	idle := c.add == AddIdle && c.remove == RemoveIdle
	v := View{
		AddState:       c.add,
		RemoveState:    c.remove,
		AddEnabled:     idle,
		RemoveEnabled:  idle,
		Picker:         append([]PickerEntry(nil), c.picker...),
		Selected:       c.selected,
		CategoryCounts: c.store.CategoryCounts(),
		Filter:         c.criteria,
	}
	if c.add == AwaitingMapClick {
		v.Prompt = PromptMapClick
	}
	if c.form != nil {
		f := c.form.clone()
		v.Form = &f
	}
	if c.selected != "" {
		for _, row := range c.store.All() {
			if row.ID == c.selected {
				v.Preview = previewOf(row)
				break
			}
		}
	}
	return v
}

// rerender recomputes the marker layer under the active filter.
func (c *Controller) rerender(v *View) {
	v.Markers = c.projector.Project(filter.Filter(c.store.All(), c.criteria))
	v.Rerender = true
}

func invalid(ev string, state fmt.Stringer) error {
	return fmt.Errorf("%w: %s in state %s", errors.ErrInvalidTransition, ev, state)
}

func (c *Controller) addOpen(ctx context.Context, ev Event, v *View) (string, error) {
	if c.add != AddIdle {
		return "", invalid(ev.Name, c.add)
	}
	if c.remove != RemoveIdle {
		return "", fmt.Errorf("%w: remove workflow is open", errors.ErrWorkflowBusy)
	}
	c.add = AwaitingMapClick
	return "ok", nil
}

func (c *Controller) mapClick(ctx context.Context, ev Event, v *View) (string, error) {
	if c.add != AwaitingMapClick {
		return "ignored", nil
	}
	c.add = FormOpen
	c.form = &Form{Latitude: ev.Lat, Longitude: ev.Lon}
	return "ok", nil
}

func (c *Controller) formEdit(ctx context.Context, ev Event, v *View) (string, error) {
	if c.add != FormOpen {
		return "", invalid(ev.Name, c.add)
	}
	if ev.Form != nil {
		f := ev.Form.clone()
		c.form = &f
	}
	return "ok", nil
}

func (c *Controller) addSubmit(ctx context.Context, ev Event, v *View) (string, error) {
	if c.add != FormOpen {
		return "", invalid(ev.Name, c.add)
	}
	if ev.Form != nil {
		f := ev.Form.clone()
		c.form = &f
	}

	poi, err := c.form.toPOI()
	if err == nil {
		_, err = c.store.Add(ctx, poi)
	}
	if err != nil {
		// the form stays open with its values so the user can correct them
		c.logger.Info("POI not added", zap.String("title", c.form.Title), zap.Error(err))
		v.Notice = failureNotice("Could not add POI", err)
		return "rejected", nil
	}

	c.add = AddIdle
	c.form = nil
	v.Notice = &Notice{Level: NoticeSuccess, Message: fmt.Sprintf("Added POI '%s'.", poi.Title)}
	c.rerender(v)
	return "ok", nil
}

func (c *Controller) addCancel(ctx context.Context, ev Event, v *View) (string, error) {
	if c.add == AddIdle {
		return "", invalid(ev.Name, c.add)
	}
	c.add = AddIdle
	c.form = nil
	return "ok", nil
}

func (c *Controller) removeOpen(ctx context.Context, ev Event, v *View) (string, error) {
	if c.remove != RemoveIdle {
		return "", invalid(ev.Name, c.remove)
	}
	if c.add != AddIdle {
		return "", fmt.Errorf("%w: add workflow is open", errors.ErrWorkflowBusy)
	}
	c.remove = PickerOpen
	c.picker = pickerEntries(c.store.All())
	c.selected = ""
	return "ok", nil
}

func (c *Controller) removeSelect(ctx context.Context, ev Event, v *View) (string, error) {
	if c.remove != PickerOpen {
		return "", invalid(ev.Name, c.remove)
	}
	if !c.inPicker(ev.ID) {
		return "", fmt.Errorf("%w: id %q is not in the picker", errors.ErrPOINotFound, ev.ID)
	}
	c.selected = ev.ID
	return "ok", nil
}

func (c *Controller) removeSubmit(ctx context.Context, ev Event, v *View) (string, error) {
	if c.remove != PickerOpen {
		return "", invalid(ev.Name, c.remove)
	}
	id := ev.ID
	if id == "" {
		id = c.selected
	}
	if id == "" {
		v.Notice = &Notice{Level: NoticeError, Message: "Select a POI to remove."}
		return "rejected", nil
	}

	removed, err := c.store.Remove(ctx, id)
	if errors.Is(err, errors.ErrPOINotFound) {
		c.picker = pickerEntries(c.store.All())
		c.selected = ""
		v.Notice = &Notice{Level: NoticeError, Message: "The selected POI no longer exists; the list has been refreshed."}
		c.rerender(v)
		return "rejected", nil
	}
	if err != nil {
		c.logger.Error("POI not removed", zap.String("id", id), zap.Error(err))
		v.Notice = failureNotice("Could not remove POI", err)
		return "rejected", nil
	}

	c.closePicker()
	v.Notice = &Notice{Level: NoticeSuccess, Message: fmt.Sprintf("Removed POI '%s'.", removed.Title)}
	c.rerender(v)
	return "ok", nil
}

func (c *Controller) removeCancel(ctx context.Context, ev Event, v *View) (string, error) {
	if c.remove != PickerOpen {
		return "", invalid(ev.Name, c.remove)
	}
	c.closePicker()
	return "ok", nil
}

func (c *Controller) filterCategories(ctx context.Context, ev Event, v *View) (string, error) {
	c.criteria.Categories = nil
	if ev.Categories != nil {
		c.criteria.Categories = make([]string, len(ev.Categories))
		copy(c.criteria.Categories, ev.Categories)
	}
	c.rerender(v)
	return "ok", nil
}

func (c *Controller) filterDates(ctx context.Context, ev Event, v *View) (string, error) {
	r, err := filter.ParseRange(ev.From, ev.To)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	c.criteria.Range = r
	c.rerender(v)
	return "ok", nil
}

func (c *Controller) closePicker() {
	c.remove = RemoveIdle
	c.picker = nil
	c.selected = ""
}

func (c *Controller) inPicker(id string) bool {
	for _, e := range c.picker {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (f *Form) toPOI() (models.POI, error) {
	p := models.POI{
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		Category:    append([]string(nil), f.Category...),
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
	}
	if strings.TrimSpace(f.Date) != "" {
		d, err := models.ParseDate(f.Date)
		if err != nil {
			return p, &schema.SchemaError{Violations: []schema.Violation{{Column: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", f.Date)}}}
		}
		p.Date = d
	}
	return p, nil
}

func failureNotice(message string, err error) *Notice {
	n := &Notice{Level: NoticeError, Message: message + "."}
	var v errors.Violator
	if errors.As(err, &v) {
		n.Details = v.ViolationMessages()
		return n
	}
	n.Details = []string{err.Error()}
	return n
}
