package query

import "time"

// RunningQueryStatus is a point-in-time view of a query.
type RunningQueryStatus struct {
	QueryID      string    `json:"query_id"`
	ResponseType string    `json:"response_type"`
	Mode         Mode      `json:"mode"`
	Completed    int64     `json:"completed_projection_count"`
	Estimated    int64     `json:"estimated_projection_count"`
	StartTime    time.Time `json:"start_time"`
	Running      bool      `json:"running"`
	Cancelled    bool      `json:"cancelled"`
	Failed       bool      `json:"failed"`
}

// statusBufferSize bounds each status subscriber. Status streams drop the
// oldest snapshot instead of blocking the query.
const statusBufferSize = 16
