package qualification

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterChangeResetsPageSortDoesNot(t *testing.T) {
	var records []Record
	for i := 0; i < 50; i++ {
		records = append(records, record())
	}

	ws := NewWorkspace(10)
	ws.SetPage(3)
	view := ws.Derive(records)
	require.Equal(t, 3, view.Page.Current)

	// Sort keeps the page.
	ws.SortBy(FieldAmount)
	view = ws.Derive(records)
	assert.Equal(t, 3, view.Page.Current)

	// Any filter change resets to page 1.
	ws.SetFilter(Filter{Market: "NYSE"})
	view = ws.Derive(records)
	assert.Equal(t, 1, view.Page.Current)
}

func TestSetSortPinsDirectionWithoutToggling(t *testing.T) {
	records := []Record{record(withAmount(200)), record(withAmount(100))}

	ws := NewWorkspace(10)
	ws.SetSort(FieldAmount, Ascending)
	ws.SetSort(FieldAmount, Ascending) // repeated request must not flip
	view := ws.Derive(records)
	require.Equal(t, Sort{Field: FieldAmount, Direction: Ascending}, view.Sort)
	assert.Equal(t, 100.0, view.Rows[0].Amount.Value)

	// SortBy still toggles off the pinned state.
	ws.SortBy(FieldAmount)
	view = ws.Derive(records)
	assert.Equal(t, Descending, view.Sort.Direction)
}

func TestPageClampedWhenCountShrinks(t *testing.T) {
	var records []Record
	for i := 0; i < 30; i++ {
		records = append(records, record())
	}

	ws := NewWorkspace(10)
	ws.SetPage(3)
	view := ws.Derive(records)
	require.Equal(t, 3, view.Page.Current)

	view = ws.Derive(records[:5])
	assert.Equal(t, 1, view.Page.Current)
	assert.Len(t, view.Rows, 5)
}

func TestSelectAllTakesFilteredViewNotCollection(t *testing.T) {
	var records []Record
	for i := 0; i < 50; i++ {
		r := record(withTaxpayer(fmt.Sprintf("76.543.%03d-K", i)))
		records = append(records, r)
	}
	// Narrow to exactly 4 records.
	records[3].TaxpayerID = "NEEDLE-3"
	records[17].TaxpayerID = "NEEDLE-17"
	records[28].TaxpayerID = "NEEDLE-28"
	records[44].TaxpayerID = "NEEDLE-44"

	ws := NewWorkspace(10)
	ws.SetFilter(Filter{Text: "needle"})
	view := ws.Derive(records)
	require.Equal(t, 4, view.Total)

	ws.SelectAll(records)
	ids := ws.SelectedIDs()
	require.Len(t, ids, 4, "selectAll must take the filtered view, not all 50")
	for _, id := range ids {
		assert.True(t, ws.Selected(id))
	}
	assert.True(t, ws.Selected(records[17].ID))
	assert.False(t, ws.Selected(records[0].ID))
}

func TestToggleFlipsMembership(t *testing.T) {
	records := []Record{record(), record()}
	ws := NewWorkspace(10)

	ws.Toggle(records[0].ID)
	assert.True(t, ws.Selected(records[0].ID))
	ws.Toggle(records[0].ID)
	assert.False(t, ws.Selected(records[0].ID))
}

func TestFilterChangePrunesSelection(t *testing.T) {
	nyse := record(withMarket("NYSE"))
	santiago := record(withMarket("Santiago"))
	records := []Record{nyse, santiago}

	ws := NewWorkspace(10)
	ws.Toggle(nyse.ID)
	ws.Toggle(santiago.ID)
	require.Equal(t, 2, len(ws.SelectedIDs()))

	// Narrowing the filter drops the id that scrolled out of view.
	ws.SetFilter(Filter{Market: "NYSE"})
	ws.Derive(records)
	ids := ws.SelectedIDs()
	require.Len(t, ids, 1)
	assert.Equal(t, nyse.ID, ids[0])
}

func TestClearSelection(t *testing.T) {
	records := []Record{record(), record()}
	ws := NewWorkspace(10)
	ws.SelectAll(records)
	require.Equal(t, 2, len(ws.SelectedIDs()))

	ws.ClearSelection()
	assert.Empty(t, ws.SelectedIDs())
}

func TestViewExposesPrePaginationResult(t *testing.T) {
	var records []Record
	for i := 0; i < 25; i++ {
		records = append(records, record())
	}

	ws := NewWorkspace(10)
	view := ws.Derive(records)
	assert.Len(t, view.Rows, 10)
	assert.Len(t, view.Matched, 25)
	assert.Equal(t, 25, view.Total)
	assert.Equal(t, 3, view.TotalPages)
	assert.Len(t, view.MatchedIDs(), 25)
}
