package checkin

// ScanRequest is the body of POST /checkin/scan. Scanners that read older
// tickets send the short QR keys t, u and e; the long keys win when both are set.
type ScanRequest struct {
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	EventID string `json:"eventId"`

	T string `json:"t"`
	U string `json:"u"`
	E string `json:"e"`
}

// Input resolves the request into a ScanInput.
func (r ScanRequest) Input() ScanInput {
	return ScanInput{
		Token:   firstNonEmpty(r.Token, r.T),
		UserID:  firstNonEmpty(r.UserID, r.U),
		EventID: firstNonEmpty(r.EventID, r.E),
	}
}

// ScanResponse is the display-oriented scan result.
type ScanResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UserName  string `json:"userName,omitempty"`
	XPAwarded *int   `json:"xpAwarded,omitempty"`
	XPMessage string `json:"xpMessage,omitempty"`
	XPPending bool   `json:"xpPending,omitempty"`
	Field     string `json:"field,omitempty"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
