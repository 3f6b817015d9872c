package pagination

import (
	"net/http"
	"strconv"
)

// Params holds pagination parameters extracted from query strings.
// Zero values mean "not supplied".
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// FromRequest extracts page and per_page from an HTTP request. Values that
// are missing, malformed, or out of range are left at zero.
func FromRequest(r *http.Request, maxPerPage int) Params {
	var p Params

	if page := r.URL.Query().Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if perPage := r.URL.Query().Get("per_page"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= maxPerPage {
			p.PerPage = v
		}
	}

	return p
}

// Window is a resolved page over a collection of known size.
type Window struct {
	Page       int
	PerPage    int
	TotalPages int
	Offset     int
	End        int
}

// Resolve computes the page window for total items. A non-positive perPage is
// replaced by defaultPerPage. There is always at least one page, and page is
// clamped into [1, TotalPages], so the window never points past the data.
func Resolve(total, page, perPage, defaultPerPage int) Window {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage <= 0 {
		perPage = 1
	}
	if total < 0 {
		total = 0
	}

	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	offset := (page - 1) * perPage
	end := offset + perPage
	if end > total {
		end = total
	}

	return Window{
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Offset:     offset,
		End:        end,
	}
}

// Slice returns the elements of data inside the window as a new slice.
// data is expected to hold exactly the total the window was resolved for.
func Slice[T any](data []T, w Window) []T {
	if w.Offset >= len(data) {
		return []T{}
	}
	end := w.End
	if end > len(data) {
		end = len(data)
	}
	out := make([]T, end-w.Offset)
	copy(out, data[w.Offset:end])
	return out
}
