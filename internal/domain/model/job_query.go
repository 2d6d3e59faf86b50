package model

// JobListOptions groups parameters for listing job records (admin view).
type JobListOptions struct {
	Name  string // Optional case-insensitive substring filter on job name
	Limit int    // Pagination limit
	Skip  int    // Pagination offset
}

// JobPage represents one page of job records plus the unpaginated total.
type JobPage struct {
	Jobs  []*Job `json:"jobs"`
	Total int    `json:"total"`
}
