package domain

// DefaultPageLimit applies when the caller omits a limit.
const DefaultPageLimit = 20

// Page is a normalized offset/limit pair.
type Page struct {
	Offset int
	Limit  int
}

// NormalizePage clamps caller-supplied pagination. Negative offsets become
// zero; a missing or non-positive limit becomes the default; limits above
// maxLimit are clamped, not rejected.
func NormalizePage(offset, limit, maxLimit int) Page {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Page{Offset: offset, Limit: limit}
}
