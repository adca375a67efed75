package dto

// IngestResponse confirms a recorded card sighting. Only the hashed
// identifier is echoed back; the card number never appears in responses
// to the ingest path.
type IngestResponse struct {
	Hpan string `json:"hpan"`
}

// DecryptResponse carries the recovered card number for an authorized
// decrypt request.
type DecryptResponse struct {
	Pan string `json:"pan"`
}
