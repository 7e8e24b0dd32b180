package qualification

import (
	"sync"

	"github.com/google/uuid"
)

// View is the derived projection of the raw collection for one workspace:
// filtered, sorted, then paginated.
type View struct {
	Rows       []Record `json:"rows"`        // current page
	Matched    []Record `json:"-"`           // filtered+sorted, pre-pagination
	Total      int      `json:"total"`       // filtered count
	Page       Page     `json:"page"`        // clamped window actually served
	TotalPages int      `json:"total_pages"`
	Sort       Sort     `json:"sort"`
	Filter     Filter   `json:"filter"`
}

// MatchedIDs returns the ids of the pre-pagination result in view order.
func (v View) MatchedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(v.Matched))
	for i, r := range v.Matched {
		ids[i] = r.ID
	}
	return ids
}

// Workspace holds one operator session's view state: filter, sort, page
// and selection. The raw collection itself lives in the cache; Derive
// recomputes the projection from whatever the caller fetched.
type Workspace struct {
	mu          sync.Mutex
	filter      Filter
	sort        Sort
	page        Page
	selection   *Selection
	filterDirty bool
}

// NewWorkspace creates a workspace starting on page 1 with no filter,
// no sort and an empty selection.
func NewWorkspace(pageSize int) *Workspace {
	return &Workspace{
		page:      Page{Size: pageSize, Current: 1},
		selection: NewSelection(),
	}
}

// SetFilter replaces the filter. Any filter change resets the window to
// page 1 and marks the selection for pruning against the new view.
func (w *Workspace) SetFilter(f Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f == w.filter {
		return
	}
	w.filter = f
	w.page.Current = 1
	w.filterDirty = true
}

// SortBy applies the operator's sort request: the active field again
// toggles direction, a new field sorts ascending. The page is not reset.
func (w *Workspace) SortBy(field Field) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sort = w.sort.Touch(field)
}

// SetSort pins the sort to an explicit field and direction, with no
// toggling. Repeating the same request leaves the sort unchanged, which
// is what a reloaded URL needs. The page is not reset.
func (w *Workspace) SetSort(field Field, dir Direction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sort = Sort{Field: field, Direction: dir}
}

// SetPage moves the window. The value is clamped when the view is
// derived, so an out-of-range request lands on the nearest valid page.
func (w *Workspace) SetPage(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.page.Current = n
}

// Toggle flips selection membership for id.
func (w *Workspace) Toggle(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.Toggle(id)
}

// SelectAll replaces the selection with the ids of the current
// filtered+sorted view over records — not the page, not the raw
// collection.
func (w *Workspace) SelectAll(records []Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := ApplySort(ApplyFilter(records, w.filter), w.sort)
	ids := make([]uuid.UUID, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	w.selection.SelectAll(ids)
	w.filterDirty = false
}

// ClearSelection empties the selection. Must be called whenever the raw
// collection is refetched, since selected ids may no longer exist.
func (w *Workspace) ClearSelection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.Clear()
}

// SelectedIDs returns the current selection members.
func (w *Workspace) SelectedIDs() []uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.IDs()
}

// Selected reports membership for id.
func (w *Workspace) Selected(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.Has(id)
}

// Derive recomputes the view over records. The page is clamped to the
// filtered count, and after a filter change the selection is pruned to
// the ids still visible.
func (w *Workspace) Derive(records []Record) View {
	w.mu.Lock()
	defer w.mu.Unlock()

	matched := ApplySort(ApplyFilter(records, w.filter), w.sort)
	if w.filterDirty {
		ids := make([]uuid.UUID, len(matched))
		for i, r := range matched {
			ids[i] = r.ID
		}
		w.selection.Retain(ids)
		w.filterDirty = false
	}
	w.page = w.page.Clamp(len(matched))

	return View{
		Rows:       ApplyPage(matched, w.page),
		Matched:    matched,
		Total:      len(matched),
		Page:       w.page,
		TotalPages: w.page.TotalPages(len(matched)),
		Sort:       w.sort,
		Filter:     w.filter,
	}
}
