package liapi

import "strconv"

// GameFull is the first entry of a game stream (/api/bot/game/stream/{id}).
type GameFull struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Variant    Variant    `json:"variant"`
	Clock      *GameClock `json:"clock"`
	White      GamePlayer `json:"white"`
	Black      GamePlayer `json:"black"`
	InitialFen string     `json:"initialFen"`
	State      GameState  `json:"state"`
}

type GameClock struct {
	// Both values are milliseconds.
	Initial   int64 `json:"initial"`
	Increment int64 `json:"increment"`
}

type GamePlayer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Rating  int    `json:"rating"`
	AILevel int    `json:"aiLevel"`
}

// DisplayName mirrors the lichess convention of naming engine opponents
// "AI Level n" when no account name is present.
func (p GamePlayer) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.AILevel > 0 {
		return "AI Level " + strconv.Itoa(p.AILevel)
	}
	return "Anonymous"
}

// ChatLine is a chat message in a game stream.
type ChatLine struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// OpponentGone signals the opponent left the game, with an optional
// countdown until a win can be claimed.
type OpponentGone struct {
	Type              string `json:"type"`
	Gone              bool   `json:"gone"`
	ClaimWinInSeconds *int   `json:"claimWinInSeconds"`
}

// GameState carries the move list and clocks; it arrives standalone on every
// update and embedded in GameFull.
type GameState struct {
	Type      string `json:"type"`
	Moves     string `json:"moves"`
	WhiteTime int64  `json:"wtime"`
	BlackTime int64  `json:"btime"`
	WhiteInc  int64  `json:"winc"`
	BlackInc  int64  `json:"binc"`
	Status    string `json:"status"`
	Winner    string `json:"winner"`
}
