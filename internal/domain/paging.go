package domain

// PagingInfo describes the requested page window and carries the total record
// count back to the caller.
type PagingInfo struct {
	Page             int   `json:"page"`
	PageSize         int   `json:"pageSize"`
	TotalRecordCount int64 `json:"totalRecordCount"`
	LoadRecordCount  bool  `json:"loadRecordCount"`
}

// NewPagingInfo returns a paging request that still needs its record count loaded.
func NewPagingInfo(page, pageSize int) *PagingInfo {
	return &PagingInfo{
		Page:            page,
		PageSize:        pageSize,
		LoadRecordCount: true,
	}
}

// Offset returns the number of rows skipped before the page starts.
func (p *PagingInfo) Offset() int {
	if p == nil || p.PageSize <= 0 || p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the page size, or 0 when no window applies.
func (p *PagingInfo) Limit() int {
	if p == nil || p.PageSize <= 0 {
		return 0
	}
	return p.PageSize
}
