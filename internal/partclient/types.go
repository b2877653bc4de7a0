package partclient

type usageResponse struct {
	ID           string `json:"id"`
	ParentPartID string `json:"parentPartId"`
	ChildPartID  string `json:"childPartId"`
	Quantity     int    `json:"quantity"`
}
