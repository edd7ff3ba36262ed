package viewengine

// Pagination is the page cursor of a view.
type Pagination struct {
	PageIndex int `json:"page_index"`
	PageSize  int `json:"page_size"`
}

// Paginate returns rows[pageIndex*pageSize : pageIndex*pageSize+pageSize],
// clipped to the slice. Out-of-range pages are empty.
func Paginate(rows []Record, pageIndex, pageSize int) []Record {
	if pageIndex < 0 || pageSize <= 0 {
		return []Record{}
	}
	start := pageIndex * pageSize
	if start >= len(rows) {
		return []Record{}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// PageCount is the number of pages needed to show total rows.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
