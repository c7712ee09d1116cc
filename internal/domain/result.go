package domain

// ScanPointResult binds a measurement to the position it was taken at.
// Results are ordered by PointIndex within a scan.
type ScanPointResult struct {
	Position    Position    `json:"position"`
	Measurement Measurement `json:"measurement"`
	PointIndex  int         `json:"point_index"`
}
