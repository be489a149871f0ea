package models

// ShareLink is the externally reachable URL of the running server
type ShareLink struct {
	Address string
	Port    int
	URL     string
}
