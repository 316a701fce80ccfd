package httputil

import (
	"net/http"
	"time"
)

// Clients holds the shared HTTP clients. Inventory fetches get a shorter
// timeout than render/asset transfers, which can be slow under load.
type Clients struct {
	Inventory *http.Client // dealer feeds and pages
	Assets    *http.Client // render fetches, S3-bound downloads, forwarding
}

func NewClients() *Clients {
	return &Clients{
		Inventory: &http.Client{Timeout: 15 * time.Second},
		Assets:    &http.Client{Timeout: 60 * time.Second},
	}
}
