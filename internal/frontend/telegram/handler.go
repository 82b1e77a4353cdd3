package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

const (
	unauthorizedMsg = "Sorry, you are not authorized to use this bot."
	errorMsg        = "An error occurred while processing your request. Please try again."
	resetMsg        = "Session reset. Send /upcoming to start over."
	clearedMsg      = "Cleared the current movie and search results."
	noTrailerMsg    = "No trailer found for this movie."

	helpMsg = `Browse upcoming movies and trailers.

/upcoming [page] - upcoming releases
/movie <id> - movie details and trailer
/trailer <id> - trailer link only
/search <title> - search by title
/clear - forget the current movie and search
/reset - start a fresh session

Any other text is searched as a title.`

	// Callback data prefixes.
	upcomingPrefix = "up:" // up:<page>
	moviePrefix    = "mv:" // mv:<tmdb id>

	maxMovieButtons = 10 // movie buttons under a list
	maxButtonLabel  = 30 // max characters in inline keyboard button label
)

// handleMessage processes an incoming text message.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	b.logger.Debug("received message",
		slog.Int64("user_id", userID),
	)

	if !b.sessions.isAllowed(userID) {
		b.sendText(chatID, unauthorizedMsg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	cmd, arg := parseCommand(text)
	switch cmd {
	case "start", "help":
		b.sendText(chatID, helpMsg)
	case "reset":
		b.sessions.reset(chatID)
		b.sendText(chatID, resetMsg)
	case "clear":
		if f := b.session(chatID); f != nil {
			f.Store().ClearDetails()
			f.Store().ClearSearch()
			f.Store().ResetError()
		}
		b.sendText(chatID, clearedMsg)
	case "upcoming":
		page := 1
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				b.sendText(chatID, "Usage: /upcoming [page], page is a positive number.")
				return
			}
			page = n
		}
		b.showUpcoming(ctx, chatID, page)
	case "movie", "trailer":
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			b.sendText(chatID, fmt.Sprintf("Usage: /%s <tmdb id>", cmd))
			return
		}
		if cmd == "movie" {
			b.showMovie(ctx, chatID, id)
		} else {
			b.showTrailer(ctx, chatID, id)
		}
	case "search":
		if arg == "" {
			b.sendText(chatID, "Usage: /search <title>")
			return
		}
		b.showSearch(ctx, chatID, arg)
	case "":
		b.showSearch(ctx, chatID, text)
	default:
		b.sendText(chatID, "Unknown command. Send /help for the list of commands.")
	}
}

// handleCallback processes inline keyboard callback queries.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	b.logger.Debug("received callback",
		slog.Int64("user_id", userID),
		slog.String("data", cq.Data),
	)

	// Acknowledge the callback immediately.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.Debug("callback ack failed", slog.String("error", err.Error()))
	}

	if !b.sessions.isAllowed(userID) {
		return
	}

	switch {
	case strings.HasPrefix(cq.Data, upcomingPrefix):
		page, err := strconv.Atoi(strings.TrimPrefix(cq.Data, upcomingPrefix))
		if err != nil || page < 1 {
			return
		}
		b.showUpcoming(ctx, chatID, page)
	case strings.HasPrefix(cq.Data, moviePrefix):
		id, err := strconv.Atoi(strings.TrimPrefix(cq.Data, moviePrefix))
		if err != nil || id < 1 {
			return
		}
		b.showMovie(ctx, chatID, id)
	}
}

// parseCommand splits "/cmd@bot args" into ("cmd", "args"). Text that is not
// a command yields an empty cmd.
func parseCommand(text string) (cmd, arg string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}

func (b *Bot) session(chatID int64) *catalog.Fetcher {
	f := b.sessions.getOrCreate(chatID, b.factory)
	if f == nil {
		b.logger.Error("failed to create session", slog.Int64("chat_id", chatID))
		b.sendText(chatID, errorMsg)
	}
	return f
}

func (b *Bot) showUpcoming(ctx context.Context, chatID int64, page int) {
	f := b.session(chatID)
	if f == nil {
		return
	}
	b.typing(chatID)

	if err := f.FetchUpcoming(ctx, page); err != nil {
		b.replyFetchError(chatID, f, err)
		return
	}
	st := f.Store().Snapshot()
	md := FormatMovieList("Upcoming movies", st.Upcoming, st.Page, st.TotalPages)
	b.sendMarkdown(chatID, md, movieKeyboard(st.Upcoming, st.Page, st.HasNextPage()))
}

func (b *Bot) showSearch(ctx context.Context, chatID int64, query string) {
	f := b.session(chatID)
	if f == nil {
		return
	}
	b.typing(chatID)

	if err := f.Search(ctx, query, 1); err != nil {
		b.replyFetchError(chatID, f, err)
		return
	}
	results := f.Store().Snapshot().SearchResults
	md := FormatMovieList(fmt.Sprintf("Results for %q", query), results, 1, 1)
	b.sendMarkdown(chatID, md, movieKeyboard(results, 0, false))
}

func (b *Bot) showMovie(ctx context.Context, chatID int64, id int) {
	f := b.session(chatID)
	if f == nil {
		return
	}
	b.typing(chatID)

	// A fresh detail screen; nothing from a previous movie may leak in.
	f.Store().ClearDetails()
	err := f.FetchDetailsAndVideos(ctx, id)
	st := f.Store().Snapshot()
	if st.Details == nil {
		b.replyFetchError(chatID, f, err)
		return
	}
	// A videos failure still shows the card, just without a trailer.

	trailerURL := ""
	if t, ok := tmdb.PickTrailer(st.Videos); ok {
		trailerURL = t.WatchURL()
	}
	md := FormatMovieDetails(st.Details, trailerURL)

	var kb *tgbotapi.InlineKeyboardMarkup
	if trailerURL != "" {
		k := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("▶ Trailer", trailerURL),
		))
		kb = &k
	}

	poster := b.movies.ImageURL(st.Details.PosterPath, tmdb.PosterLarge)
	if poster != "" && utf8.RuneCountInString(md) <= maxCaption {
		b.sendPoster(chatID, poster, md, kb)
		return
	}
	if poster != "" {
		b.sendPoster(chatID, poster, "", nil)
	}
	b.sendMarkdown(chatID, md, kb)
}

func (b *Bot) showTrailer(ctx context.Context, chatID int64, id int) {
	f := b.session(chatID)
	if f == nil {
		return
	}

	if err := f.FetchVideos(ctx, id); err != nil {
		b.replyFetchError(chatID, f, err)
		return
	}
	t, ok := tmdb.PickTrailer(f.Store().Snapshot().Videos)
	if !ok {
		b.sendText(chatID, noTrailerMsg)
		return
	}
	b.sendText(chatID, fmt.Sprintf("%s\n%s", t.Name, t.WatchURL()))
}

// replyFetchError sends the user-facing message the store recorded for err.
func (b *Bot) replyFetchError(chatID int64, f *catalog.Fetcher, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		b.logger.Warn("fetch failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
	msg := f.Store().Snapshot().Error
	if msg == "" {
		msg = errorMsg
	}
	b.sendText(chatID, msg)
}

// movieKeyboard builds detail buttons for the first movies of a list and,
// when page > 0, a pagination row for the upcoming list.
func movieKeyboard(movies []tmdb.Movie, page int, hasNext bool) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	var row []tgbotapi.InlineKeyboardButton
	for i, m := range movies {
		if i == maxMovieButtons {
			break
		}
		label := truncate(fmt.Sprintf("%d. %s", i+1, m.Title), maxButtonLabel)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, moviePrefix+strconv.Itoa(m.ID)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀ Prev", upcomingPrefix+strconv.Itoa(page-1)))
	}
	if page > 0 && hasNext {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ▶", upcomingPrefix+strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func (b *Bot) typing(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("typing indicator failed", slog.String("error", err.Error()))
	}
}

// sendMarkdown sends MarkdownV2 text, falling back to plain text when
// Telegram rejects the markup.
func (b *Bot) sendMarkdown(chatID int64, md string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, md)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send markdown, retrying plain",
			slog.String("error", err.Error()),
		)
		plain := tgbotapi.NewMessage(chatID, unescapeMdV2(md))
		if kb != nil {
			plain.ReplyMarkup = kb
		}
		if _, err := b.api.Send(plain); err != nil {
			b.logger.Error("failed to send message",
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// sendText sends a plain text message (no parse mode).
func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// sendPoster sends a poster photo with an optional MarkdownV2 caption.
func (b *Bot) sendPoster(chatID int64, url, caption string, kb *tgbotapi.InlineKeyboardMarkup) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	if caption != "" {
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeMarkdownV2
	}
	if kb != nil {
		photo.ReplyMarkup = kb
	}
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Debug("failed to send poster",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		if caption != "" {
			b.sendMarkdown(chatID, caption, kb)
		}
	}
}

// unescapeMdV2 strips MarkdownV2 escapes and emphasis markers for the
// plain-text fallback.
func unescapeMdV2(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '*' || r == '_' || r == '`':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
