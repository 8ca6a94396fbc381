package domain

// RemoteCollection is the on-chain view of a DCL collection
type RemoteCollection struct {
	ID         string   `json:"id"`
	Creator    string   `json:"creator"`
	Managers   []string `json:"managers"`
	Minters    []string `json:"minters"`
	IsApproved bool     `json:"isApproved"`
}

// RemoteItem is the on-chain view of a DCL item
type RemoteItem struct {
	ID           string `json:"id"`
	BlockchainID string `json:"blockchainId"`
	ContentHash  string `json:"contentHash"`
	IsApproved   bool   `json:"isApproved"`
}

// ThirdParty is a registry record for a linked collection provider
type ThirdParty struct {
	ID         string   `json:"id"`
	Managers   []string `json:"managers"`
	IsApproved bool     `json:"isApproved"`
}
