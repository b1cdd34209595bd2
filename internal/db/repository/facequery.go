package repository

// FaceSort selects the ordering of an unknown-face listing.
type FaceSort string

const (
	SortDateDesc       FaceSort = "date_desc"
	SortDateAsc        FaceSort = "date_asc"
	SortConfidenceDesc FaceSort = "confidence_desc"
)

// DefaultLimit is the page size used when the client does not supply one.
const DefaultLimit = 50

// JSON path expressions over the embedded match documents. These are
// fixed literals; user input only ever enters the query as a bound
// parameter.
const (
	exprBestName       = "json_extract(response, '$[0].results[0].name')"
	exprBestMatch      = "json_extract(response, '$[0].results[0].match')"
	exprBestBoxWidth   = "json_extract(response, '$[0].results[0].box.width')"
	exprBestConfidence = "CAST(json_extract(response, '$[0].results[0].confidence') AS REAL)"
	exprEventCamera    = "json_extract(event, '$.camera')"
)

// orderings whitelists sort keys. A trailing id key keeps the ordering
// stable within a single query execution.
var orderings = map[FaceSort]string{
	SortDateDesc:       "created_at DESC, id DESC",
	SortDateAsc:        "created_at ASC, id ASC",
	SortConfidenceDesc: exprBestConfidence + " DESC, id DESC",
}

// FaceQuery describes one unknown-face listing request.
type FaceQuery struct {
	Limit  int
	Offset int
	Camera string
	Sort   FaceSort
}

// Normalize applies defaults and bounds: limit defaults to 50 (minimum 1),
// offset to 0, and unknown sort keys fall back to date_desc.
func (q *FaceQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if _, ok := orderings[q.Sort]; !ok {
		q.Sort = SortDateDesc
	}
}

// OrderClause returns the whitelisted ORDER BY expression for the query.
func (q FaceQuery) OrderClause() string {
	if clause, ok := orderings[q.Sort]; ok {
		return clause
	}
	return orderings[SortDateDesc]
}
