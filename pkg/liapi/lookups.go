package liapi

// ExplorerQuery selects whose games the opening explorer aggregates:
// the named player's games with the given color from the position.
type ExplorerQuery struct {
	FEN    string
	Player string
	Color  string
}

// ExplorerResponse is the opening explorer reply. The aggregate white/draws/
// black counts cover the whole position; per-move counts sit on each entry.
type ExplorerResponse struct {
	White int64          `json:"white"`
	Draws int64          `json:"draws"`
	Black int64          `json:"black"`
	Moves []ExplorerMove `json:"moves"`
}

func (r ExplorerResponse) TotalGames() int64 {
	return r.White + r.Draws + r.Black
}

type ExplorerMove struct {
	UCI         string `json:"uci"`
	SAN         string `json:"san"`
	White       int64  `json:"white"`
	Draws       int64  `json:"draws"`
	Black       int64  `json:"black"`
	Performance int    `json:"performance"`
}

// CloudEvalResponse is the /api/cloud-eval reply. A miss arrives as an error
// payload instead of an HTTP failure.
type CloudEvalResponse struct {
	Error string    `json:"error,omitempty"`
	Depth int       `json:"depth"`
	PVs   []CloudPV `json:"pvs"`
	Fen   string    `json:"fen"`
}

type CloudPV struct {
	Moves string `json:"moves"`
	CP    int    `json:"cp"`
	Mate  int    `json:"mate"`
}

// TablebaseResponse is the tablebase.lichess.ovh reply. Moves are ordered
// best-first from the probing side's point of view.
type TablebaseResponse struct {
	Category string          `json:"category"`
	DTZ      int             `json:"dtz"`
	DTM      *int            `json:"dtm"`
	Moves    []TablebaseMove `json:"moves"`
}

type TablebaseMove struct {
	UCI      string `json:"uci"`
	SAN      string `json:"san"`
	Category string `json:"category"`
	DTZ      int    `json:"dtz"`
	DTM      *int   `json:"dtm"`
}

// ChessDBResponse is the chessdb.cn reply for query/querybest/querypv.
type ChessDBResponse struct {
	Status string   `json:"status"`
	Move   string   `json:"move"`
	Depth  *int     `json:"depth"`
	Score  int      `json:"score"`
	PV     []string `json:"pv"`
}
