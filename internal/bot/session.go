package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"gopkg.in/telebot.v4"

	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

const invoicePromptTimeout = 2 * time.Minute

// Session holds one chat's task list state: the screen, its filter
// reconciler, the billing reconciler and the debounced search input.
type Session struct {
	Screen     *tasklist.Screen
	Reconciler *tasklist.Reconciler
	Billing    *tasklist.BillingReconciler
	Debouncer  *tasklist.Debouncer

	chatID int64

	mu           sync.Mutex
	listMessage  *telebot.Message
	invoiceReply chan string
	taskIndex    map[int64]models.Task
}

// SessionManager hands out one Session per chat, creating it on first use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	bot      *Bot
}

func NewSessionManager(bot *Bot) *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*Session),
		bot:      bot,
	}
}

// Get returns the chat's session, creating and wiring it on first access.
func (sm *SessionManager) Get(chatID int64) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, ok := sm.sessions[chatID]; ok {
		return session
	}

	session := &Session{
		chatID:    chatID,
		Debouncer: tasklist.NewDebouncer(tasklist.DefaultSearchDebounce),
		taskIndex: make(map[int64]models.Task),
	}
	session.Reconciler = tasklist.NewReconciler(nil, tasklist.NewMemoryParams())
	session.Screen = tasklist.NewScreen(sm.bot.api, session.Reconciler, sm.bot.log, sm.bot.metrics)
	session.Billing = tasklist.NewBillingReconciler(
		sm.bot.api,
		sm.bot.cache,
		&chatPrompter{bot: sm.bot, session: session},
		sm.bot.log,
	)

	sm.sessions[chatID] = session
	return session
}

// RememberTasks indexes the currently rendered page so callback data can be
// resolved back to full tasks.
func (s *Session) RememberTasks(tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.taskIndex = make(map[int64]models.Task, len(tasks))
	for _, task := range tasks {
		s.taskIndex[task.ID] = task
	}
}

// Task resolves a rendered task by id.
func (s *Session) Task(taskID int64) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.taskIndex[taskID]
	return task, ok
}

// SetListMessage records the message carrying the task list, so refreshes
// edit it in place instead of flooding the chat.
func (s *Session) SetListMessage(msg *telebot.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listMessage = msg
}

// ListMessage returns the tracked list message, nil before the first /tasks.
func (s *Session) ListMessage() *telebot.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMessage
}

// DeliverInvoiceID hands a typed invoice id to a pending prompt. It reports
// false when no prompt is waiting.
func (s *Session) DeliverInvoiceID(invoiceID string) bool {
	s.mu.Lock()
	reply := s.invoiceReply
	s.mu.Unlock()

	if reply == nil {
		return false
	}
	select {
	case reply <- invoiceID:
		return true
	default:
		return false
	}
}

func (s *Session) armInvoicePrompt() chan string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoiceReply = make(chan string, 1)
	return s.invoiceReply
}

func (s *Session) disarmInvoicePrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoiceReply = nil
}

// chatPrompter asks for an invoice id by messaging the chat and waiting for
// the next text reply. Used on invoice cache misses only.
type chatPrompter struct {
	bot     *Bot
	session *Session
}

func (p *chatPrompter) PromptInvoiceID(ctx context.Context, task models.Task) (string, error) {
	reply := p.session.armInvoicePrompt()
	defer p.session.disarmInvoicePrompt()

	p.bot.stateManager.Set(p.session.chatID, UserState{WaitingFor: stateAwaitingInvoice, TaskID: task.ID})

	lang := "en"
	if cached, err := p.bot.cache.Preference(ctx, p.session.chatID, "language"); err == nil && cached != "" {
		lang = cached
	}
	prompt := p.bot.localizer.GetWithData(lang, "prompt.invoice", map[string]interface{}{
		"ticket":  task.TicketID,
		"project": task.ProjectName,
		"month":   tasklist.InvoiceCacheMonth(task),
	})

	if _, err := p.bot.bot.Send(telebot.ChatID(p.session.chatID), prompt); err != nil {
		return "", errors.Join(tasklist.ErrPromptCancelled, err)
	}
	p.bot.metrics.SentMessages.WithLabelValues("text").Inc()

	select {
	case invoiceID := <-reply:
		return invoiceID, nil
	case <-ctx.Done():
		return "", tasklist.ErrPromptCancelled
	case <-time.After(invoicePromptTimeout):
		return "", tasklist.ErrPromptCancelled
	}
}

// callbackTaskID parses the task id carried in an inline button's data.
func callbackTaskID(tCtx telebot.Context) (int64, bool) {
	if tCtx.Callback() == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(tCtx.Callback().Data, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
