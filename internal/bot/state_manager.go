package bot

import "sync"

const (
	// stateAwaitingInvoice indicates the bot is waiting for an invoice id.
	stateAwaitingInvoice = "awaiting_invoice"
	// stateAwaitingBulkInvoice indicates the bot is waiting for the uniform
	// invoice id of a bulk billing.
	stateAwaitingBulkInvoice = "awaiting_bulk_invoice"
	// stateAwaitingMonth indicates the bot is waiting for a YYYY-MM token.
	stateAwaitingMonth = "awaiting_month"
	// stateAwaitingYear indicates the bot is waiting for a YYYY token.
	stateAwaitingYear = "awaiting_year"
	// stateAwaitingSearch indicates the bot is waiting for a search text.
	stateAwaitingSearch = "awaiting_search"
)

// UserState saves a context for next message from user.
type UserState struct {
	WaitingFor string
	TaskID     int64
}

// StateManager manages the states of all users.
type StateManager struct {
	mu     sync.Mutex
	states map[int64]UserState
}

func NewStateManager() *StateManager {
	return &StateManager{states: make(map[int64]UserState)}
}

// Set sets the state for the user.
func (sm *StateManager) Set(userID int64, state UserState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.states[userID] = state
}

// Get gets and immediately delete user state.
func (sm *StateManager) Get(userID int64) (UserState, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state, ok := sm.states[userID]
	if ok {
		delete(sm.states, userID)
	}
	return state, ok
}
