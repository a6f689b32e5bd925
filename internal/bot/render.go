package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v4"

	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

// renderList builds the task list message and its inline keyboard from the
// session's screen state.
func (b *Bot) renderList(ctx context.Context, tCtx telebot.Context, session *Session) (string, *telebot.ReplyMarkup) {
	var sb strings.Builder

	criteria := session.Reconciler.Criteria()
	page := session.Screen.Page()
	var tasks []models.Task
	if page != nil {
		tasks = page.Content
	}

	sb.WriteString("*" + b.t(ctx, tCtx, "list.title") + "*\n")

	if session.Screen.Phase() == tasklist.PhaseError {
		errText := ""
		if err := session.Screen.Err(); err != nil {
			errText = err.Error()
		}
		sb.WriteString(b.tWithData(ctx, tCtx, "list.error", map[string]interface{}{"error": errText}))
		return sb.String(), navOnlyMarkup(b, ctx, tCtx)
	}

	if page != nil {
		sb.WriteString(b.tWithData(ctx, tCtx, "list.page", map[string]interface{}{
			"page":  page.Number + 1,
			"pages": max(page.TotalPages, 1),
			"total": page.TotalElements,
		}))
		sb.WriteString("\n")
	}

	sb.WriteString(b.tWithData(ctx, tCtx, "list.filters", map[string]interface{}{
		"filters": describeFilters(criteria, b.t(ctx, tCtx, "filters.none")),
	}))
	sb.WriteString("\n\n")

	if session.Screen.ScanIncomplete() {
		sb.WriteString("⚠️ " + b.t(ctx, tCtx, "list.scan_incomplete") + "\n\n")
	}

	if len(tasks) == 0 {
		sb.WriteString(b.t(ctx, tCtx, "list.empty"))
	}

	for i, task := range tasks {
		sb.WriteString(fmt.Sprintf("%d. `%s` %s\n", i+1, task.TicketID, task.Title))
		sb.WriteString("    " + describeTask(task) + "\n")
	}

	session.RememberTasks(tasks)

	return sb.String(), b.listMarkup(ctx, tCtx, tasks)
}

// describeTask renders one task's status line.
func describeTask(task models.Task) string {
	parts := []string{
		task.StartDate.Format("2006-01-02"),
		fmt.Sprintf("%gh", task.HoursWorked),
	}
	if task.Type != "" {
		parts = append(parts, task.Type)
	}
	if task.IsBilled {
		billed := "💰"
		if task.InvoiceID != "" {
			billed += " " + task.InvoiceID
		}
		parts = append(parts, billed)
	}
	if task.IsPaid {
		parts = append(parts, "✅")
	}
	return strings.Join(parts, " · ")
}

// describeFilters summarizes the active criteria for the list header.
func describeFilters(criteria tasklist.Criteria, none string) string {
	var parts []string
	if criteria.ProjectID != nil {
		parts = append(parts, fmt.Sprintf("project=%d", *criteria.ProjectID))
	}
	if criteria.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", criteria.Search))
	}
	if criteria.Billed != nil {
		parts = append(parts, fmt.Sprintf("billed=%t", *criteria.Billed))
	}
	if criteria.Paid != nil {
		parts = append(parts, fmt.Sprintf("paid=%t", *criteria.Paid))
	}
	if criteria.Type != "" {
		parts = append(parts, "type="+criteria.Type)
	}
	if criteria.Month != "" {
		parts = append(parts, "month="+criteria.Month)
	}
	if criteria.Year != "" {
		parts = append(parts, "year="+criteria.Year)
	}
	if len(parts) == 0 {
		return none
	}
	return strings.Join(parts, ", ")
}

// listMarkup builds the inline keyboard under the task list: one action row
// per task, then navigation and control rows.
func (b *Bot) listMarkup(ctx context.Context, tCtx telebot.Context, tasks []models.Task) *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}
	var rows []telebot.Row

	for _, task := range tasks {
		data := strconv.FormatInt(task.ID, 10)
		billLabel := b.t(ctx, tCtx, "btn.bill")
		if task.IsBilled {
			billLabel = b.t(ctx, tCtx, "btn.unbill")
		}
		payLabel := b.t(ctx, tCtx, "btn.pay")
		if task.IsPaid {
			payLabel = b.t(ctx, tCtx, "btn.unpay")
		}
		rows = append(rows, menu.Row(
			menu.Data(billLabel+" "+task.TicketID, btnTaskBill.Unique, data),
			menu.Data(payLabel+" "+task.TicketID, btnTaskPay.Unique, data),
		))
	}

	rows = append(rows,
		menu.Row(
			menu.Data("⬅️ "+b.t(ctx, tCtx, "btn.prev"), btnListPrev.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.next")+" ➡️", btnListNext.Unique),
		),
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.filters"), btnListFilters.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.sort"), btnListSort.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.search"), btnListSearch.Unique),
		),
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.summary"), btnListSummary.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.report"), btnListReport.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.bulk"), btnListBulk.Unique),
		),
	)

	menu.Inline(rows...)
	return menu
}

// navOnlyMarkup is the reduced keyboard shown with an error message.
func navOnlyMarkup(b *Bot, ctx context.Context, tCtx telebot.Context) *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}
	menu.Inline(
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.filters"), btnListFilters.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.clear_filters"), btnFilterClear.Unique),
		),
	)
	return menu
}

// filterMarkup is the inline keyboard of the filter menu.
func (b *Bot) filterMarkup(ctx context.Context, tCtx telebot.Context, criteria tasklist.Criteria) *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}

	billed := b.t(ctx, tCtx, "btn.billed") + ": " + triState(criteria.Billed)
	paid := b.t(ctx, tCtx, "btn.paid") + ": " + triState(criteria.Paid)
	taskType := b.t(ctx, tCtx, "btn.type") + ": " + orDash(criteria.Type)
	month := b.t(ctx, tCtx, "btn.month") + ": " + orDash(criteria.Month)
	year := b.t(ctx, tCtx, "btn.year") + ": " + orDash(criteria.Year)

	menu.Inline(
		menu.Row(
			menu.Data(billed, btnFilterBilled.Unique),
			menu.Data(paid, btnFilterPaid.Unique),
		),
		menu.Row(menu.Data(taskType, btnFilterType.Unique)),
		menu.Row(
			menu.Data(month, btnFilterMonth.Unique),
			menu.Data(year, btnFilterYear.Unique),
		),
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.clear_filters"), btnFilterClear.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.back"), btnFilterBack.Unique),
		),
	)
	return menu
}

// sortMarkup is the inline keyboard of the sort menu, marking the active
// column and direction.
func (b *Bot) sortMarkup(ctx context.Context, tCtx telebot.Context, sort tasklist.SortOrder) *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}

	label := func(name string, field tasklist.SortField) string {
		if sort.Field != field {
			return name
		}
		if sort.Descending {
			return name + " ↓"
		}
		return name + " ↑"
	}

	menu.Inline(
		menu.Row(
			menu.Data(label("Ticket", tasklist.SortByTicket), btnSortTicket.Unique),
			menu.Data(label("Description", tasklist.SortByDescription), btnSortDescription.Unique),
		),
		menu.Row(
			menu.Data(label("Date", tasklist.SortByStartDate), btnSortStart.Unique),
			menu.Data(label("Hours", tasklist.SortByHours), btnSortHours.Unique),
		),
		menu.Row(
			menu.Data(label("Type", tasklist.SortByType), btnSortType.Unique),
			menu.Data(label("Billed", tasklist.SortByBilled), btnSortBilled.Unique),
		),
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.back"), btnFilterBack.Unique),
		),
	)
	return menu
}

// bulkMarkup is the inline keyboard of the bulk action menu. Every action
// applies to the whole filtered population, not just the visible page.
func (b *Bot) bulkMarkup(ctx context.Context, tCtx telebot.Context) *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}
	menu.Inline(
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.bulk_bill"), btnBulkBill.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.bulk_unbill"), btnBulkUnbill.Unique),
		),
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.bulk_pay"), btnBulkPay.Unique),
			menu.Data(b.t(ctx, tCtx, "btn.bulk_unpay"), btnBulkUnpay.Unique),
		),
		menu.Row(
			menu.Data(b.t(ctx, tCtx, "btn.back"), btnFilterBack.Unique),
		),
	)
	return menu
}

func triState(value *bool) string {
	if value == nil {
		return "—"
	}
	if *value {
		return "yes"
	}
	return "no"
}

func orDash(value string) string {
	if value == "" {
		return "—"
	}
	return value
}
