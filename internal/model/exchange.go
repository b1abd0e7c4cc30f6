package model

// Exchange is one completed conversational turn.
type Exchange struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}
