package uci

import (
	"strings"
	"testing"
	"time"
)

func TestBuildGoTokens(t *testing.T) {
	cases := []struct {
		name   string
		limits Limits
		want   string
	}{
		{
			name:   "movetime wins over clocks",
			limits: Limits{MoveTimeMillis: 15000, WhiteMillis: 60000, BlackMillis: 60000},
			want:   "go movetime 15000",
		},
		{
			name:   "full clock set",
			limits: Limits{WhiteMillis: 50000, BlackMillis: 45000, WhiteIncMillis: 1000, BlackIncMillis: 1000},
			want:   "go wtime 50000 btime 45000 winc 1000 binc 1000",
		},
		{
			name:   "depth appended",
			limits: Limits{MoveTimeMillis: 1000, Depth: 12},
			want:   "go movetime 1000 depth 12",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := buildGoTokens(tc.limits)
			if err != nil {
				t.Fatalf("buildGoTokens: %v", err)
			}
			if got := strings.Join(tokens, " "); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildGoTokensRejectsEmptyLimits(t *testing.T) {
	if _, err := buildGoTokens(Limits{}); err == nil {
		t.Fatal("expected error for empty limits")
	}
}

func TestComputeSearchTimeout(t *testing.T) {
	if got := computeSearchTimeout(Limits{MoveTimeMillis: 15000}); got != 20*time.Second {
		t.Fatalf("movetime timeout: got %v", got)
	}
	if got := computeSearchTimeout(Limits{WhiteMillis: 30000, BlackMillis: 45000}); got != 55*time.Second {
		t.Fatalf("clock timeout: got %v", got)
	}
	if got := computeSearchTimeout(Limits{}); got != 60*time.Second {
		t.Fatalf("fallback timeout: got %v", got)
	}
}

func TestParseInfo(t *testing.T) {
	line := "info depth 22 seldepth 31 multipv 1 score cp 35 nodes 4200000 nps 1200000 hashfull 430 tbhits 0 time 3500 pv e2e4 e7e5 g1f3"
	info, ok := parseInfo(line)
	if !ok {
		t.Fatal("expected a full info line to parse")
	}
	if info.Depth != 22 || info.SelDepth != 31 {
		t.Fatalf("depth parse: %+v", info)
	}
	if info.Score.IsMate || info.Score.CP != 35 {
		t.Fatalf("score parse: %+v", info.Score)
	}
	if info.Nodes != 4200000 || info.NPS != 1200000 || info.TimeMS != 3500 {
		t.Fatalf("counter parse: %+v", info)
	}
	if len(info.PV) != 3 || info.PV[0] != "e2e4" {
		t.Fatalf("pv parse: %v", info.PV)
	}
}

func TestParseInfoMateScore(t *testing.T) {
	info, ok := parseInfo("info depth 12 score mate -3 nodes 1000 pv h7h8")
	if !ok {
		t.Fatal("expected parse")
	}
	if !info.Score.IsMate || info.Score.Mate != -3 {
		t.Fatalf("mate parse: %+v", info.Score)
	}
}

func TestParseInfoIgnoresPartialLines(t *testing.T) {
	for _, line := range []string{
		"info string NNUE evaluation enabled",
		"info depth 5 currmove e2e4 currmovenumber 1",
		"",
	} {
		if _, ok := parseInfo(line); ok {
			t.Fatalf("line %q should not produce an info", line)
		}
	}
}
