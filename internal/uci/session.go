package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond

	// Budget for draining a stopped analysis. A compliant engine answers a
	// "stop" with bestmove almost immediately.
	ponderStopTimeout = 2 * time.Second
)

// Options are applied once per engine process via setoption.
type Options struct {
	Threads          int
	HashMB           int
	SyzygyPath       string
	SyzygyProbeLimit int
	Extra            map[string]string
	SilenceStderr    bool
}

// Limits bound a single search. Clock values are milliseconds and mirror the
// UCI wtime/btime/winc/binc tokens; MoveTimeMillis takes precedence when set.
type Limits struct {
	WhiteMillis    int64
	BlackMillis    int64
	WhiteIncMillis int64
	BlackIncMillis int64
	MoveTimeMillis int64
	Depth          int
}

// Score is a side-to-move relative evaluation as reported by the engine.
type Score struct {
	CP     int
	Mate   int
	IsMate bool
}

// Info is the last full "info" payload seen before bestmove.
type Info struct {
	Score    Score
	Depth    int
	SelDepth int
	Nodes    int64
	NPS      int64
	TimeMS   int64
	HashFull int
	TBHits   int64
	PV       []string
}

type PlayResult struct {
	BestMove string
	Info     Info
	HasInfo  bool
}

// Session controls one engine process. A session serves exactly one game at a
// time; the game loop drives it sequentially.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	search sync.Mutex

	pondering bool
}

func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if !opt.SilenceStderr {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
	}

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Play runs a clock- or movetime-bounded search and blocks until bestmove.
// Any running analysis is stopped first.
func (s *Session) Play(ctx context.Context, fen string, moves []string, limits Limits) (PlayResult, error) {
	if err := s.StopAnalysis(ctx); err != nil {
		return PlayResult{}, err
	}

	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send(buildPositionCommand(fen, moves)); err != nil {
		return PlayResult{}, fmt.Errorf("send position: %w", err)
	}

	goTokens, err := buildGoTokens(limits)
	if err != nil {
		return PlayResult{}, err
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return PlayResult{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(limits))
	defer cancel()

	var (
		info    Info
		hasInfo bool
	)
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			return PlayResult{}, fmt.Errorf("read line (go=%s): %w", goCmd, err)
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if parsed, ok := parseInfo(line); ok {
				info = parsed
				hasInfo = true
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			if len(parts) < 2 || parts[1] == "(none)" {
				return PlayResult{Info: info, HasInfo: hasInfo}, nil
			}
			return PlayResult{BestMove: parts[1], Info: info, HasInfo: hasInfo}, nil
		}
	}
}

// StartAnalysis begins an unbounded background search on the given position.
// It produces no move; the next Play or StopAnalysis call cancels it.
func (s *Session) StartAnalysis(ctx context.Context, fen string, moves []string) error {
	if err := s.StopAnalysis(ctx); err != nil {
		return err
	}

	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send(buildPositionCommand(fen, moves)); err != nil {
		return fmt.Errorf("send position: %w", err)
	}
	if err := s.send("go infinite\n"); err != nil {
		return fmt.Errorf("send go infinite: %w", err)
	}
	s.pondering = true
	return nil
}

// StopAnalysis halts a running background search and drains its bestmove.
// It is a no-op when no analysis is running.
func (s *Session) StopAnalysis(ctx context.Context) error {
	s.search.Lock()
	defer s.search.Unlock()

	if !s.pondering {
		return nil
	}
	s.pondering = false

	if err := s.send("stop\n"); err != nil {
		return fmt.Errorf("send stop: %w", err)
	}

	drainCtx, cancel := context.WithTimeout(ctx, ponderStopTimeout)
	defer cancel()
	for {
		line, err := s.readLine(drainCtx)
		if err != nil {
			return fmt.Errorf("drain analysis: %w", err)
		}
		if strings.HasPrefix(line, "bestmove") {
			return nil
		}
	}
}

func (s *Session) Pondering() bool {
	s.search.Lock()
	defer s.search.Unlock()
	return s.pondering
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func validateOptions(opt Options) error {
	if opt.HashMB < 0 {
		return fmt.Errorf("hash size must be >= 0: %d", opt.HashMB)
	}
	if opt.Threads < 0 {
		return fmt.Errorf("threads must be >= 0: %d", opt.Threads)
	}
	if opt.SyzygyProbeLimit < 0 {
		return fmt.Errorf("syzygy probe limit must be >= 0: %d", opt.SyzygyProbeLimit)
	}
	return nil
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.FormatInt(l.MoveTimeMillis, 10))
	} else {
		if l.WhiteMillis > 0 {
			args = append(args, "wtime", strconv.FormatInt(l.WhiteMillis, 10))
		}
		if l.BlackMillis > 0 {
			args = append(args, "btime", strconv.FormatInt(l.BlackMillis, 10))
		}
		if l.WhiteIncMillis > 0 {
			args = append(args, "winc", strconv.FormatInt(l.WhiteIncMillis, 10))
		}
		if l.BlackIncMillis > 0 {
			args = append(args, "binc", strconv.FormatInt(l.BlackIncMillis, 10))
		}
	}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if len(args) == 1 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return args, nil
}

func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis+5000) * time.Millisecond
	}
	longest := l.WhiteMillis
	if l.BlackMillis > longest {
		longest = l.BlackMillis
	}
	if longest > 0 {
		return time.Duration(longest+10000) * time.Millisecond
	}
	return 60 * time.Second
}

func parseInfo(line string) (Info, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Info{}, false
	}

	var (
		info  Info
		pvIdx = -1
	)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				info.Depth, _ = strconv.Atoi(parts[i+1])
				i++
			}
		case "seldepth":
			if i+1 < len(parts) {
				info.SelDepth, _ = strconv.Atoi(parts[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(parts) {
				info.Nodes, _ = strconv.ParseInt(parts[i+1], 10, 64)
				i++
			}
		case "nps":
			if i+1 < len(parts) {
				info.NPS, _ = strconv.ParseInt(parts[i+1], 10, 64)
				i++
			}
		case "time":
			if i+1 < len(parts) {
				info.TimeMS, _ = strconv.ParseInt(parts[i+1], 10, 64)
				i++
			}
		case "hashfull":
			if i+1 < len(parts) {
				info.HashFull, _ = strconv.Atoi(parts[i+1])
				i++
			}
		case "tbhits":
			if i+1 < len(parts) {
				info.TBHits, _ = strconv.ParseInt(parts[i+1], 10, 64)
				i++
			}
		case "score":
			if i+2 < len(parts) {
				val, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						info.Score = Score{CP: val}
					case "mate":
						info.Score = Score{Mate: val, IsMate: true}
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return Info{}, false
	}
	info.PV = append([]string(nil), parts[pvIdx:]...)
	return info, true
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.StopAnalysis(ctx); err != nil {
		return err
	}
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}

	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		_, _ = io.WriteString(s.stdin, "quit\n")
		s.stdin.Close()
	}

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}

	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}

	return nil
}

func (s *Session) applyOptions(opt Options) error {
	var cmds []string
	if opt.Threads > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Threads value %d\n", opt.Threads))
	}
	if opt.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB))
	}
	if opt.SyzygyPath != "" {
		cmds = append(cmds, fmt.Sprintf("setoption name SyzygyPath value %s\n", opt.SyzygyPath))
	}
	if opt.SyzygyProbeLimit > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name SyzygyProbeLimit value %d\n", opt.SyzygyProbeLimit))
	}
	for name, value := range opt.Extra {
		cmds = append(cmds, fmt.Sprintf("setoption name %s value %s\n", name, value))
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
