package liapi

// Event is one entry of the account event stream (/api/stream/event).
type Event struct {
	Type      string     `json:"type"`
	Challenge *Challenge `json:"challenge,omitempty"`
	Game      *EventGame `json:"game,omitempty"`
}

type EventGame struct {
	ID string `json:"id"`
}

type Challenge struct {
	ID            string        `json:"id"`
	Challenger    ChallengeUser `json:"challenger"`
	DestUser      ChallengeUser `json:"destUser"`
	Variant       Variant       `json:"variant"`
	Rated         bool          `json:"rated"`
	Speed         string        `json:"speed"`
	TimeControl   TimeControl   `json:"timeControl"`
	Color         string        `json:"color"`
	DeclineReason string        `json:"declineReason,omitempty"`
}

type ChallengeUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Title  string `json:"title"`
	Rating int    `json:"rating"`
}

type Variant struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type TimeControl struct {
	Type      string `json:"type"`
	Limit     int    `json:"limit"`
	Increment int    `json:"increment"`
}

type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title"`
}
