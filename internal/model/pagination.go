package model

// OpLogPage is the paginated payload returned by the audit log API.
type OpLogPage struct {
	Data     []*OpLogEntry `json:"data"`
	Total    int           `json:"total"`
	Pages    int           `json:"pages"`
	PageNum  int           `json:"pageNum"`
	PageSize int           `json:"pageSize"`
}
