package qualification

// Page is the pagination window over the filtered result. Size comes from
// configuration; Current is 1-based.
type Page struct {
	Size    int `json:"size"`
	Current int `json:"current"`
}

// TotalPages for a filtered count. A non-empty result always has at least
// one page.
func (p Page) TotalPages(count int) int {
	if p.Size <= 0 {
		return 1
	}
	pages := (count + p.Size - 1) / p.Size
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Clamp forces Current into [1, TotalPages(count)]. Called whenever the
// filtered count changes so the window never points past the end.
func (p Page) Clamp(count int) Page {
	if p.Current < 1 {
		p.Current = 1
	}
	if total := p.TotalPages(count); p.Current > total {
		p.Current = total
	}
	return p
}

// ApplyPage slices the rows for the current window: [(p-1)*size, p*size).
func ApplyPage(rows []Record, p Page) []Record {
	if p.Size <= 0 {
		return rows
	}
	start := (p.Current - 1) * p.Size
	if start < 0 || start >= len(rows) {
		return nil
	}
	end := start + p.Size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
