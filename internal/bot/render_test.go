package bot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"

	"github.com/workmgmt/tasklens/internal/i18n"
	"github.com/workmgmt/tasklens/internal/invoicecache"
	"github.com/workmgmt/tasklens/internal/metrics"
	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

// senderContext satisfies the handler context for code paths that only need
// the sender's identity.
type senderContext struct {
	telebot.Context
	user *telebot.User
}

func (c senderContext) Sender() *telebot.User { return c.user }

func newTestBot(t *testing.T) *Bot {
	t.Helper()

	cache, err := invoicecache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	localizer, err := i18n.NewLocalizer()
	require.NoError(t, err)

	return &Bot{
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:        cache,
		metrics:      metrics.NewMetrics(prometheus.NewRegistry()),
		localizer:    localizer,
		stateManager: NewStateManager(),
	}
}

func markupUniques(markup *telebot.ReplyMarkup) []string {
	var uniques []string
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			uniques = append(uniques, button.Unique)
		}
	}
	return uniques
}

func TestListMarkupOffersBulkMenu(t *testing.T) {
	t.Parallel()

	b := newTestBot(t)
	tCtx := senderContext{user: &telebot.User{ID: 1, LanguageCode: "en"}}

	markup := b.listMarkup(context.Background(), tCtx, []models.Task{{ID: 7, TicketID: "TK-7"}})
	assert.Contains(t, markupUniques(markup), btnListBulk.Unique)
}

func TestBulkMarkupCoversEveryAction(t *testing.T) {
	t.Parallel()

	b := newTestBot(t)
	tCtx := senderContext{user: &telebot.User{ID: 1, LanguageCode: "en"}}

	uniques := markupUniques(b.bulkMarkup(context.Background(), tCtx))
	assert.ElementsMatch(t, []string{
		btnBulkBill.Unique,
		btnBulkUnbill.Unique,
		btnBulkPay.Unique,
		btnBulkUnpay.Unique,
		btnFilterBack.Unique,
	}, uniques)
}

func TestSortMarkupCoversEverySortableColumn(t *testing.T) {
	t.Parallel()

	b := newTestBot(t)
	tCtx := senderContext{user: &telebot.User{ID: 1, LanguageCode: "en"}}

	uniques := markupUniques(b.sortMarkup(context.Background(), tCtx, tasklist.DefaultSort()))

	for _, unique := range []string{
		btnSortTicket.Unique,
		btnSortDescription.Unique,
		btnSortStart.Unique,
		btnSortHours.Unique,
		btnSortType.Unique,
		btnSortBilled.Unique,
	} {
		assert.Contains(t, uniques, unique)
	}
}
