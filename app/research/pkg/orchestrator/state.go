package orchestrator

import "time"

// State 一次编排所处的阶段
type State string

const (
	StateInit            State = "INIT"
	StatePrimaryAttempt  State = "PRIMARY_ATTEMPT"
	StatePrimaryOK       State = "PRIMARY_OK"
	StatePrimaryFail     State = "PRIMARY_FAIL"
	StateFallbackAttempt State = "FALLBACK_ATTEMPT"
	StateFallbackOK      State = "FALLBACK_OK"
	StateFallbackFail    State = "FALLBACK_FAIL"
	StateDone            State = "DONE"
	StateTerminalError   State = "TERMINAL_ERROR"
)

// Transition 一次状态迁移
type Transition struct {
	From State
	To   State
	At   time.Time
}

// run 单次编排的状态，不在多次执行间共享
type run struct {
	state       State
	transitions []Transition
	now         func() time.Time
}

func newRun(now func() time.Time) *run {
	return &run{state: StateInit, now: now}
}

func (r *run) to(s State) {
	r.transitions = append(r.transitions, Transition{From: r.state, To: s, At: r.now()})
	r.state = s
}

// Path 迁移经过的状态序列，含起点
func Path(ts []Transition) []State {
	if len(ts) == 0 {
		return nil
	}
	out := make([]State, 0, len(ts)+1)
	out = append(out, ts[0].From)
	for _, t := range ts {
		out = append(out, t.To)
	}
	return out
}
