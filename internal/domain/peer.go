package domain

// Peer is one entry of the directory as a terminal sees it.
// ID is empty while nobody is registered under Name.
type Peer struct {
	ID          PeerID `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	Available   bool   `json:"available"`
}
