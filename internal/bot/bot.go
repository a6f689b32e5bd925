package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/telebot.v4"

	"github.com/workmgmt/tasklens/internal/client/taskapi"
	"github.com/workmgmt/tasklens/internal/i18n"
	"github.com/workmgmt/tasklens/internal/invoicecache"
	"github.com/workmgmt/tasklens/internal/metrics"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

// Bot contains the bot API instance and other information.
type Bot struct {
	bot          *telebot.Bot
	log          *slog.Logger
	api          *taskapi.Client
	cache        *invoicecache.Store
	metrics      *metrics.Metrics
	stateManager *StateManager
	sessions     *SessionManager
	localizer    *i18n.Localizer
}

var (
	// inline buttons carrying a task id in their callback data.
	btnTaskBill = telebot.InlineButton{Unique: "task_bill"}
	btnTaskPay  = telebot.InlineButton{Unique: "task_pay"}

	// inline buttons for the list controls.
	btnListPrev    = telebot.InlineButton{Unique: "list_prev"}
	btnListNext    = telebot.InlineButton{Unique: "list_next"}
	btnListFilters = telebot.InlineButton{Unique: "list_filters"}
	btnListSort    = telebot.InlineButton{Unique: "list_sort"}
	btnListSummary = telebot.InlineButton{Unique: "list_summary"}
	btnListReport  = telebot.InlineButton{Unique: "list_report"}
	btnListSearch  = telebot.InlineButton{Unique: "list_search"}
	btnListBulk    = telebot.InlineButton{Unique: "list_bulk"}

	// inline buttons for the bulk menu; each action covers every task
	// visible under the active filters.
	btnBulkBill   = telebot.InlineButton{Unique: "bulk_bill"}
	btnBulkUnbill = telebot.InlineButton{Unique: "bulk_unbill"}
	btnBulkPay    = telebot.InlineButton{Unique: "bulk_pay"}
	btnBulkUnpay  = telebot.InlineButton{Unique: "bulk_unpay"}

	// inline buttons for the filter menu.
	btnFilterBilled = telebot.InlineButton{Unique: "filter_billed"}
	btnFilterPaid   = telebot.InlineButton{Unique: "filter_paid"}
	btnFilterType   = telebot.InlineButton{Unique: "filter_type"}
	btnFilterMonth  = telebot.InlineButton{Unique: "filter_month"}
	btnFilterYear   = telebot.InlineButton{Unique: "filter_year"}
	btnFilterClear  = telebot.InlineButton{Unique: "filter_clear"}
	btnFilterBack   = telebot.InlineButton{Unique: "filter_back"}

	// inline buttons for the sort menu, one per sortable column.
	btnSortTicket      = telebot.InlineButton{Unique: "sort_ticket"}
	btnSortDescription = telebot.InlineButton{Unique: "sort_description"}
	btnSortStart       = telebot.InlineButton{Unique: "sort_start"}
	btnSortHours       = telebot.InlineButton{Unique: "sort_hours"}
	btnSortType        = telebot.InlineButton{Unique: "sort_type"}
	btnSortBilled      = telebot.InlineButton{Unique: "sort_billed"}
)

// NewBot creates a new bot with the given token.
func NewBot(
	log *slog.Logger,
	api *taskapi.Client,
	cache *invoicecache.Store,
	metrics *metrics.Metrics,
	token string,
	poller time.Duration,
) (*Bot, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: poller},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	log.Info("Authorized on account", "account", bot.Me.Username)

	localizer, err := i18n.NewLocalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize localizer: %w", err)
	}

	botInstance := &Bot{
		bot:          bot,
		log:          log,
		api:          api,
		cache:        cache,
		metrics:      metrics,
		stateManager: NewStateManager(),
		localizer:    localizer,
	}
	botInstance.sessions = NewSessionManager(botInstance)

	botInstance.registerRoutes()

	return botInstance, nil
}

// Start launches the bot to listen for updates.
func (b *Bot) Start() {
	b.log.Info("Telegram bot is starting...")
	b.bot.Start()
}

// Stop gracefully stops the Telegram bot and logs the action.
func (b *Bot) Stop() {
	b.log.Info("Telegram bot is stopped...")
	b.bot.Stop()
}

// registerRoutes configures all routes (commands).
func (b *Bot) registerRoutes() {
	b.bot.Handle("/start", b.startHandler)
	b.bot.Handle("/tasks", b.tasksHandler)
	b.bot.Handle("/report", b.reportHandler)
	b.bot.Handle("/language", b.languageHandler)
	b.bot.Handle(telebot.OnText, b.textHandler)

	// Language selection callbacks
	b.bot.Handle("\flanguage_en", b.languageChangeHandler)
	b.bot.Handle("\flanguage_it", b.languageChangeHandler)

	// List navigation and controls
	b.bot.Handle(&btnListPrev, b.pageHandler(-1))
	b.bot.Handle(&btnListNext, b.pageHandler(+1))
	b.bot.Handle(&btnListFilters, b.filterMenuHandler)
	b.bot.Handle(&btnListSort, b.sortMenuHandler)
	b.bot.Handle(&btnListSummary, b.summaryHandler)
	b.bot.Handle(&btnListReport, b.reportHandler)
	b.bot.Handle(&btnListSearch, b.searchPromptHandler)
	b.bot.Handle(&btnListBulk, b.bulkMenuHandler)

	// Bulk actions
	b.bot.Handle(&btnBulkBill, b.bulkBillPromptHandler)
	b.bot.Handle(&btnBulkUnbill, b.bulkUnbillHandler)
	b.bot.Handle(&btnBulkPay, b.bulkPaymentHandler(true))
	b.bot.Handle(&btnBulkUnpay, b.bulkPaymentHandler(false))

	// Filter menu
	b.bot.Handle(&btnFilterBilled, b.cycleBilledHandler)
	b.bot.Handle(&btnFilterPaid, b.cyclePaidHandler)
	b.bot.Handle(&btnFilterType, b.cycleTypeHandler)
	b.bot.Handle(&btnFilterMonth, b.monthPromptHandler)
	b.bot.Handle(&btnFilterYear, b.yearPromptHandler)
	b.bot.Handle(&btnFilterClear, b.clearFiltersHandler)
	b.bot.Handle(&btnFilterBack, b.backToListHandler)

	// Sort menu
	b.bot.Handle(&btnSortTicket, b.sortHandler(tasklist.SortByTicket))
	b.bot.Handle(&btnSortDescription, b.sortHandler(tasklist.SortByDescription))
	b.bot.Handle(&btnSortStart, b.sortHandler(tasklist.SortByStartDate))
	b.bot.Handle(&btnSortHours, b.sortHandler(tasklist.SortByHours))
	b.bot.Handle(&btnSortType, b.sortHandler(tasklist.SortByType))
	b.bot.Handle(&btnSortBilled, b.sortHandler(tasklist.SortByBilled))

	// Per-task actions
	b.bot.Handle(&btnTaskBill, b.toggleBillingHandler)
	b.bot.Handle(&btnTaskPay, b.togglePaymentHandler)
}

// getUserLanguage retrieves the user's language preference from the cache.
// It returns the language code, falling back to auto-detection from Telegram if not set.
func (b *Bot) getUserLanguage(ctx context.Context, tCtx telebot.Context) string {
	userID := tCtx.Sender().ID

	lang, err := b.cache.Preference(ctx, userID, "language")
	if err != nil {
		b.log.WarnContext(ctx, "Failed to get user language, using default", "error", err, "userID", userID)
		return "en"
	}

	if lang == "" {
		detected := i18n.NormalizeLanguageCode(tCtx.Sender().LanguageCode)
		if detected != "en" {
			go func() {
				saveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := b.cache.SetPreference(saveCtx, userID, "language", detected); err != nil {
					b.log.ErrorContext(saveCtx, "Failed to save detected language", "error", err, "userID", userID)
				}
			}()
		}
		return detected
	}

	return lang
}

// t is a shorthand method for getting translations.
func (b *Bot) t(ctx context.Context, tCtx telebot.Context, key string) string {
	lang := b.getUserLanguage(ctx, tCtx)
	return b.localizer.Get(lang, key)
}

// tWithData is a shorthand method for getting translations with placeholder data.
func (b *Bot) tWithData(ctx context.Context, tCtx telebot.Context, key string, data map[string]interface{}) string {
	lang := b.getUserLanguage(ctx, tCtx)
	return b.localizer.GetWithData(lang, key, data)
}
