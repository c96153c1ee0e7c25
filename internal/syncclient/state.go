package syncclient

// State 동기화 에이전트의 연결 상태
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateIdentifySent
	StateSynced
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateIdentifySent:
		return "identify_sent"
	case StateSynced:
		return "synced"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// live 소켓이 열려 있는 상태인지
func (s State) live() bool {
	return s == StateConnected || s == StateIdentifySent || s == StateSynced
}

// EventKind 상태 전이를 일으키는 이벤트
type EventKind int

const (
	EventStart EventKind = iota
	EventReconnectDue
	EventDialed
	EventIdentified
	EventDialFailed
	EventClosed
	EventResynced
	EventMessage
	EventWatch
	EventStop
)

// Action 전이에 따라 런타임이 수행할 작업
type Action int

const (
	ActionDial Action = iota
	ActionSendIdentify
	ActionResync
	ActionApply
	ActionCloseConn
	ActionScheduleReconnect
	ActionCancelReconnect
)

// Transition 다음 상태와 순서대로 실행할 작업
type Transition struct {
	Next    State
	Actions []Action
}

// Next 순수 전이 함수. 처리하지 않는 조합은 상태 유지, 작업 없음
func Next(current State, event EventKind, hasIdentity bool) Transition {
	stay := Transition{Next: current}

	if current == StateStopped {
		return stay
	}

	switch event {
	case EventStop:
		return Transition{Next: StateStopped, Actions: []Action{ActionCancelReconnect, ActionCloseConn}}

	case EventStart, EventReconnectDue:
		if current != StateDisconnected {
			return stay
		}
		return Transition{Next: StateConnecting, Actions: []Action{ActionCancelReconnect, ActionDial}}

	case EventDialed:
		if current != StateConnecting {
			return stay
		}
		// IDENTIFY는 응답을 기다리지 않는다. 재동기화는 소켓이 아닌 조회 경로로
		if hasIdentity {
			return Transition{Next: StateConnected, Actions: []Action{ActionSendIdentify, ActionResync}}
		}
		return Transition{Next: StateConnected, Actions: []Action{ActionResync}}

	case EventIdentified:
		if current != StateConnected {
			return stay
		}
		return Transition{Next: StateIdentifySent}

	case EventDialFailed, EventClosed:
		if current == StateDisconnected {
			return stay
		}
		return Transition{Next: StateDisconnected, Actions: []Action{ActionCloseConn, ActionScheduleReconnect}}

	case EventResynced:
		if current == StateConnected || current == StateIdentifySent {
			return Transition{Next: StateSynced}
		}
		return stay

	case EventMessage:
		if current.live() {
			return Transition{Next: current, Actions: []Action{ActionApply}}
		}
		return stay

	case EventWatch:
		if current.live() {
			return Transition{Next: current, Actions: []Action{ActionResync}}
		}
		return stay
	}

	return stay
}
