package bot

import (
	"context"
	"time"

	"gopkg.in/telebot.v4"
)

// languageHandler handles the language selection request from the user.
// It presents the user with a menu to choose their preferred language.
func (b *Bot) languageHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("/language").Inc()
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	menu := &telebot.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("English", "language_en")),
		menu.Row(menu.Data("Italiano", "language_it")),
	)

	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(b.t(timeoutCtx, ctx, "btn.language"), menu)
}

// languageChangeHandler handles the language change request from the user.
// It updates the user's language preference and sends a confirmation message.
func (b *Bot) languageChangeHandler(ctx telebot.Context) error {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	userID := ctx.Sender().ID
	callbackData := ctx.Callback().Unique
	b.log.DebugContext(timeoutCtx, "User selected language", "callbackData", callbackData, "userID", userID)

	var langCode string
	switch callbackData {
	case "language_en":
		langCode = "en"
	case "language_it":
		langCode = "it"
	default:
		b.log.Error("Unknown language callback", "data", callbackData)
		return ctx.Respond(&telebot.CallbackResponse{Text: "Unknown language"})
	}

	if err := b.cache.SetPreference(timeoutCtx, userID, "language", langCode); err != nil {
		b.log.ErrorContext(timeoutCtx, "Failed to set user language", "error", err, "userID", userID)
		b.metrics.SentMessages.WithLabelValues("error").Inc()
		return ctx.Respond(&telebot.CallbackResponse{Text: "⚠️"})
	}

	b.log.InfoContext(timeoutCtx, "User changed language", "userID", userID, "language", langCode)

	_ = ctx.Respond(&telebot.CallbackResponse{Text: "✅"})

	b.metrics.SentMessages.WithLabelValues("text").Inc()
	return ctx.Send(b.localizer.Get(langCode, "msg.language_set"))
}
