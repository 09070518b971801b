package play

// Status mirrors the lichess game status keys.
type Status string

const (
	StatusCreated       Status = "created"
	StatusStarted       Status = "started"
	StatusAborted       Status = "aborted"
	StatusMate          Status = "mate"
	StatusResign        Status = "resign"
	StatusStalemate     Status = "stalemate"
	StatusTimeout       Status = "timeout"
	StatusDraw          Status = "draw"
	StatusOutOfTime     Status = "outoftime"
	StatusCheat         Status = "cheat"
	StatusNoStart       Status = "noStart"
	StatusUnknownFinish Status = "unknownFinish"
	StatusVariantEnd    Status = "variantEnd"
)

func (s Status) Finished() bool {
	return s != StatusCreated && s != StatusStarted
}
