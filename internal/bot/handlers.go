package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/telebot.v4"

	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

const (
	quickTimeout   = 3 * time.Second
	refreshTimeout = 2 * time.Minute
)

// startHandler process command /start.
func (b *Bot) startHandler(ctx telebot.Context) error {
	b.log.Info("User started the bot", "id", ctx.Sender().ID, "username", ctx.Sender().Username)
	b.metrics.CommandReceived.WithLabelValues("/start").Inc()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(b.t(timeoutCtx, ctx, "start.welcome"))
}

// tasksHandler handles the /tasks command: it refreshes the chat's task
// list and posts it with the control keyboard.
func (b *Bot) tasksHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("/tasks").Inc()
	session := b.sessions.Get(ctx.Sender().ID)

	return b.refreshAndRender(ctx, session, true)
}

// refreshAndRender reloads the screen and redraws the list message. When
// forceSend is true (or no list message exists yet) a new message is sent,
// otherwise the existing one is edited in place.
func (b *Bot) refreshAndRender(tCtx telebot.Context, session *Session, forceSend bool) error {
	refreshCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := session.Screen.Refresh(refreshCtx); err != nil {
		b.log.Error("Failed to refresh task list", "chat", session.chatID, "error", err)
	}

	text, markup := b.renderList(refreshCtx, tCtx, session)

	if existing := session.ListMessage(); existing != nil && !forceSend {
		edited, err := b.bot.Edit(existing, text, markup, telebot.ModeMarkdown)
		if err == nil {
			session.SetListMessage(edited)
			b.metrics.SentMessages.WithLabelValues("edit").Inc()
			return nil
		}
		b.log.Debug("Failed to edit list message, sending a new one", "error", err)
	}

	sent, err := b.bot.Send(telebot.ChatID(session.chatID), text, markup, telebot.ModeMarkdown)
	if err != nil {
		b.metrics.SentMessages.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to send task list: %w", err)
	}
	session.SetListMessage(sent)
	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return nil
}

// textHandler routes free text by the user's pending state: invoice ids,
// month and year tokens, and debounced search input.
func (b *Bot) textHandler(ctx telebot.Context) error {
	userID := ctx.Sender().ID
	session := b.sessions.Get(userID)
	text := strings.TrimSpace(ctx.Text())

	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	state, ok := b.stateManager.Get(userID)
	if !ok {
		// No pending prompt: treat typed text as a live search box.
		session.Debouncer.Trigger(func() {
			session.Reconciler.SetSearch(text)
			_ = b.refreshAndRender(ctx, session, false)
		})
		return nil
	}

	switch state.WaitingFor {
	case stateAwaitingInvoice:
		if !session.DeliverInvoiceID(text) {
			b.metrics.SentMessages.WithLabelValues("text").Inc()
			return ctx.Send(b.t(timeoutCtx, ctx, "msg.cancelled"))
		}
		return nil

	case stateAwaitingBulkInvoice:
		if text == "" || strings.EqualFold(text, "cancel") {
			b.metrics.SentMessages.WithLabelValues("text").Inc()
			return ctx.Send(b.t(timeoutCtx, ctx, "msg.cancelled"))
		}
		b.runBulkBilling(ctx, session, text)
		return nil

	case stateAwaitingMonth:
		if _, _, err := tasklist.ParseMonthToken(text); err != nil {
			b.stateManager.Set(userID, state)
			b.metrics.SentMessages.WithLabelValues("text").Inc()
			return ctx.Send(b.t(timeoutCtx, ctx, "msg.bad_month"))
		}
		session.Reconciler.SetMonth(text)
		return b.refreshAndRender(ctx, session, false)

	case stateAwaitingYear:
		if _, err := tasklist.ParseYearToken(text); err != nil {
			b.stateManager.Set(userID, state)
			b.metrics.SentMessages.WithLabelValues("text").Inc()
			return ctx.Send(b.t(timeoutCtx, ctx, "msg.bad_year"))
		}
		session.Reconciler.SetYear(text)
		return b.refreshAndRender(ctx, session, false)

	case stateAwaitingSearch:
		session.Debouncer.Trigger(func() {
			session.Reconciler.SetSearch(text)
			_ = b.refreshAndRender(ctx, session, false)
		})
		return nil
	}

	return nil
}

// pageHandler moves the list one page in the given direction.
func (b *Bot) pageHandler(delta int) telebot.HandlerFunc {
	return func(ctx telebot.Context) error {
		session := b.sessions.Get(ctx.Sender().ID)

		page := session.Screen.Page()
		current := session.Reconciler.Criteria().Page
		next := current + delta
		if next < 0 {
			return ctx.Respond()
		}
		if page != nil && page.TotalPages > 0 && next >= page.TotalPages {
			return ctx.Respond()
		}

		session.Reconciler.SetPage(next)
		_ = ctx.Respond()
		return b.refreshAndRender(ctx, session, false)
	}
}

// filterMenuHandler swaps the list keyboard for the filter menu.
func (b *Bot) filterMenuHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	_ = ctx.Respond()
	markup := b.filterMarkup(timeoutCtx, ctx, session.Reconciler.Criteria())
	return b.editMarkup(session, ctx, markup)
}

// sortMenuHandler swaps the list keyboard for the sort menu.
func (b *Bot) sortMenuHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	_ = ctx.Respond()
	markup := b.sortMarkup(timeoutCtx, ctx, session.Reconciler.Criteria().Sort)
	return b.editMarkup(session, ctx, markup)
}

func (b *Bot) editMarkup(session *Session, tCtx telebot.Context, markup *telebot.ReplyMarkup) error {
	existing := session.ListMessage()
	if existing == nil {
		return b.refreshAndRender(tCtx, session, true)
	}
	if _, err := b.bot.EditReplyMarkup(existing, markup); err != nil {
		return fmt.Errorf("failed to edit list keyboard: %w", err)
	}
	b.metrics.SentMessages.WithLabelValues("edit").Inc()
	return nil
}

// backToListHandler redraws the plain list keyboard.
func (b *Bot) backToListHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)
	_ = ctx.Respond()
	return b.refreshAndRender(ctx, session, false)
}

// sortHandler toggles sorting by the given column: a repeated tap flips the
// direction, a new column starts ascending.
func (b *Bot) sortHandler(field tasklist.SortField) telebot.HandlerFunc {
	return func(ctx telebot.Context) error {
		session := b.sessions.Get(ctx.Sender().ID)
		session.Reconciler.ToggleSort(field)
		_ = ctx.Respond()
		return b.refreshAndRender(ctx, session, false)
	}
}

// cycleBilledHandler cycles the billed filter through any -> yes -> no.
func (b *Bot) cycleBilledHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)
	session.Reconciler.SetBilled(cycleTriState(session.Reconciler.Criteria().Billed))
	_ = ctx.Respond()
	return b.refreshAndRender(ctx, session, false)
}

// cyclePaidHandler cycles the paid filter through any -> yes -> no.
func (b *Bot) cyclePaidHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)
	session.Reconciler.SetPaid(cycleTriState(session.Reconciler.Criteria().Paid))
	_ = ctx.Respond()
	return b.refreshAndRender(ctx, session, false)
}

// cycleTypeHandler cycles the type filter through any -> EVOLUTIVA -> CORRETTIVA.
func (b *Bot) cycleTypeHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)

	var next string
	switch session.Reconciler.Criteria().Type {
	case "":
		next = models.TypeEvolutiva
	case models.TypeEvolutiva:
		next = models.TypeCorrettiva
	default:
		next = ""
	}
	session.Reconciler.SetType(next)
	_ = ctx.Respond()
	return b.refreshAndRender(ctx, session, false)
}

func cycleTriState(current *bool) *bool {
	switch {
	case current == nil:
		value := true
		return &value
	case *current:
		value := false
		return &value
	default:
		return nil
	}
}

// monthPromptHandler asks for a YYYY-MM token.
func (b *Bot) monthPromptHandler(ctx telebot.Context) error {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	b.stateManager.Set(ctx.Sender().ID, UserState{WaitingFor: stateAwaitingMonth})
	_ = ctx.Respond()
	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(b.t(timeoutCtx, ctx, "prompt.month"))
}

// yearPromptHandler asks for a YYYY token.
func (b *Bot) yearPromptHandler(ctx telebot.Context) error {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	b.stateManager.Set(ctx.Sender().ID, UserState{WaitingFor: stateAwaitingYear})
	_ = ctx.Respond()
	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(b.t(timeoutCtx, ctx, "prompt.year"))
}

// searchPromptHandler asks for a search text.
func (b *Bot) searchPromptHandler(ctx telebot.Context) error {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	b.stateManager.Set(ctx.Sender().ID, UserState{WaitingFor: stateAwaitingSearch})
	_ = ctx.Respond()
	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(b.t(timeoutCtx, ctx, "prompt.search"))
}

// clearFiltersHandler resets every filter in one step; sort and page size
// survive.
func (b *Bot) clearFiltersHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)
	session.Reconciler.ClearFilters()
	_ = ctx.Respond()
	return b.refreshAndRender(ctx, session, false)
}

// summaryHandler sends the per-project totals for the whole filtered
// population.
func (b *Bot) summaryHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("summary").Inc()
	session := b.sessions.Get(ctx.Sender().ID)
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	_ = ctx.Respond()

	summaries := session.Screen.Summaries()
	if len(summaries) == 0 {
		b.metrics.SentMessages.WithLabelValues("text").Inc()
		return ctx.Send(b.t(timeoutCtx, ctx, "list.empty"))
	}

	var sb strings.Builder
	sb.WriteString("*" + b.t(timeoutCtx, ctx, "summary.title") + "*\n")
	for _, summary := range summaries {
		sb.WriteString(b.tWithData(timeoutCtx, ctx, "summary.row", map[string]interface{}{
			"project":  summary.ProjectName,
			"count":    summary.TaskCount,
			"hours":    fmt.Sprintf("%g", summary.TotalHours),
			"amount":   fmt.Sprintf("%.2f", summary.TotalAmount),
			"currency": summary.Currency,
		}))
		sb.WriteString("\n")
	}

	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(sb.String(), telebot.ModeMarkdown)
}

// reportHandler downloads the Excel report and sends it as a document.
func (b *Bot) reportHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("/report").Inc()
	session := b.sessions.Get(ctx.Sender().ID)

	timeoutCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if ctx.Callback() != nil {
		_ = ctx.Respond()
	}

	projectID := session.Reconciler.Criteria().ProjectID
	data, err := b.api.DownloadReport(timeoutCtx, projectID)
	if err != nil {
		b.log.Error("Failed to download report", "chat", session.chatID, "error", err)
		b.metrics.SentMessages.WithLabelValues("error").Inc()
		return ctx.Send(b.t(timeoutCtx, ctx, "report.empty"))
	}

	document := &telebot.Document{
		File:     telebot.FromReader(bytes.NewReader(data)),
		FileName: "tasks.xlsx",
		Caption:  b.t(timeoutCtx, ctx, "report.caption"),
	}
	b.metrics.SentMessages.WithLabelValues("document").Inc()
	return ctx.Send(document)
}

// bulkMenuHandler swaps the list keyboard for the bulk action menu.
func (b *Bot) bulkMenuHandler(ctx telebot.Context) error {
	session := b.sessions.Get(ctx.Sender().ID)
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	_ = ctx.Respond()
	return b.editMarkup(session, ctx, b.bulkMarkup(timeoutCtx, ctx))
}

// bulkBillPromptHandler starts a bulk billing over every task visible under
// the active filters by asking for the uniform invoice id.
func (b *Bot) bulkBillPromptHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("bulk_billing").Inc()
	session := b.sessions.Get(ctx.Sender().ID)
	timeoutCtx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()

	_ = ctx.Respond()
	if len(session.Screen.Filtered()) == 0 {
		b.metrics.SentMessages.WithLabelValues("text").Inc()
		return ctx.Send(b.t(timeoutCtx, ctx, "list.empty"))
	}

	b.stateManager.Set(ctx.Sender().ID, UserState{WaitingFor: stateAwaitingBulkInvoice})
	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(b.t(timeoutCtx, ctx, "prompt.bulk_invoice"))
}

// bulkUnbillHandler clears the billed status of every task visible under the
// active filters. No invoice id is involved.
func (b *Bot) bulkUnbillHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("bulk_billing").Inc()
	session := b.sessions.Get(ctx.Sender().ID)
	tasks := session.Screen.Filtered()
	_ = ctx.Respond()

	go func() {
		mutateCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		err := session.Billing.BulkBilling(mutateCtx, tasks, false, time.Time{}, "")
		b.settleMutation(mutateCtx, ctx, session, err, len(tasks))
	}()
	return nil
}

// bulkPaymentHandler sets the paid status of every task visible under the
// active filters to the given value.
func (b *Bot) bulkPaymentHandler(paid bool) telebot.HandlerFunc {
	return func(ctx telebot.Context) error {
		b.metrics.CommandReceived.WithLabelValues("bulk_payment").Inc()
		session := b.sessions.Get(ctx.Sender().ID)
		tasks := session.Screen.Filtered()
		_ = ctx.Respond()

		go func() {
			mutateCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()

			err := session.Billing.BulkPayment(mutateCtx, tasks, paid, time.Now())
			b.settleMutation(mutateCtx, ctx, session, err, len(tasks))
		}()
		return nil
	}
}

// runBulkBilling applies the typed uniform invoice id to every task visible
// under the active filters.
func (b *Bot) runBulkBilling(tCtx telebot.Context, session *Session, invoiceID string) {
	tasks := session.Screen.Filtered()

	go func() {
		mutateCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		err := session.Billing.BulkBilling(mutateCtx, tasks, true, time.Now(), invoiceID)
		b.settleMutation(mutateCtx, tCtx, session, err, len(tasks))
	}()
}

// toggleBillingHandler flips the billed status of the tapped task. Billing
// may prompt for an invoice id on a cache miss; the mutation runs off the
// handler goroutine so the prompt can wait for the user's reply.
func (b *Bot) toggleBillingHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("toggle_billing").Inc()
	session := b.sessions.Get(ctx.Sender().ID)

	taskID, ok := callbackTaskID(ctx)
	if !ok {
		return ctx.Respond()
	}
	task, ok := session.Task(taskID)
	if !ok {
		return ctx.Respond()
	}
	_ = ctx.Respond()

	go func() {
		mutateCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		err := session.Billing.ToggleBilling(mutateCtx, task)
		b.settleMutation(mutateCtx, ctx, session, err, 1)
	}()
	return nil
}

// togglePaymentHandler flips the paid status of the tapped task.
func (b *Bot) togglePaymentHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("toggle_payment").Inc()
	session := b.sessions.Get(ctx.Sender().ID)

	taskID, ok := callbackTaskID(ctx)
	if !ok {
		return ctx.Respond()
	}
	task, ok := session.Task(taskID)
	if !ok {
		return ctx.Respond()
	}
	_ = ctx.Respond()

	go func() {
		mutateCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		err := session.Billing.TogglePayment(mutateCtx, task)
		b.settleMutation(mutateCtx, ctx, session, err, 1)
	}()
	return nil
}

// settleMutation reports a mutation's outcome and refetches the list with
// the active criteria. Local state is never patched: a failed mutation
// means nothing changed.
func (b *Bot) settleMutation(ctx context.Context, tCtx telebot.Context, session *Session, err error, count int) {
	switch {
	case err == nil:
		b.metrics.SentMessages.WithLabelValues("text").Inc()
		_ = tCtx.Send(b.tWithData(ctx, tCtx, "msg.updated", map[string]interface{}{"count": count}))

	case errors.Is(err, tasklist.ErrMutationInFlight):
		b.metrics.SentMessages.WithLabelValues("text").Inc()
		_ = tCtx.Send(b.t(ctx, tCtx, "msg.mutation_busy"))
		return

	case errors.Is(err, tasklist.ErrEmptyInvoiceID):
		b.metrics.SentMessages.WithLabelValues("text").Inc()
		_ = tCtx.Send(b.t(ctx, tCtx, "msg.invoice_required"))
		return

	case errors.Is(err, tasklist.ErrPromptCancelled):
		b.metrics.SentMessages.WithLabelValues("text").Inc()
		_ = tCtx.Send(b.t(ctx, tCtx, "msg.cancelled"))
		return

	default:
		b.log.Error("Mutation failed", "chat", session.chatID, "error", err)
		b.metrics.SentMessages.WithLabelValues("error").Inc()
		_ = tCtx.Send(b.tWithData(ctx, tCtx, "msg.update_failed", map[string]interface{}{"error": err.Error()}))
	}

	_ = b.refreshAndRender(tCtx, session, false)
}
