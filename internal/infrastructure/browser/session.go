package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"card_pricer/internal/config"
	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/pkg/errcodes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const (
	resultsSelector = ".s-card, li.s-item"
	extractTimeout  = 10 * time.Second
)

//go:embed extract.js
var extractScript string

// Session: долгоживущая вкладка браузера. Не потокобезопасна: в каждый
// момент ею пользуется одна задача, это гарантирует Pool.
type Session interface {
	Search(ctx context.Context, query string, maxResults int) ([]entity.Listing, error)
	SearchURL(query string) string
	Ping(ctx context.Context) error
	Close() error
}

// Factory создаёт сессию для слота пула.
type Factory func(ctx context.Context, slot int) (Session, error)

type extractResult struct {
	Blocked bool             `json:"blocked"`
	Rows    []entity.Listing `json:"rows"`
}

type ChromeSession struct {
	slot          int
	cfg           config.Browser
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewChromeFactory возвращает фабрику сессий headless Chrome.
func NewChromeFactory(cfg config.Browser) Factory {
	return func(ctx context.Context, slot int) (Session, error) {
		return NewChromeSession(ctx, slot, cfg)
	}
}

func NewChromeSession(ctx context.Context, slot int, cfg config.Browser) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	// The browser outlives the request that created it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		slot:          slot,
		cfg:           cfg,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}

	stop := context.AfterFunc(ctx, cancelBrowser)
	defer stop()

	if err := chromedp.Run(browserCtx); err != nil {
		s.Close() //nolint:errcheck
		return nil, domain.WrapError(err, errcodes.SessionUnusable, fmt.Sprintf("start browser for slot %d", slot))
	}

	return s, nil
}

func (s *ChromeSession) SearchURL(query string) string {
	q := url.Values{}
	q.Set("_nkw", query)
	q.Set("_sacat", "0")
	q.Set("LH_Complete", "1")
	q.Set("LH_Sold", "1")
	q.Set("_sop", "13")
	q.Set("_ipg", "240")

	return s.cfg.SearchURL + "?" + q.Encode()
}

// Search открывает выдачу проданных лотов и извлекает до maxResults строк.
// Событие load не ждём: выдача считается готовой, когда в DOM появились
// карточки, а если за PageTimeout они не появились, извлекается то, что
// успело отрисоваться. Строки без нужных полей отбросит нормализация.
func (s *ChromeSession) Search(ctx context.Context, query string, maxResults int) ([]entity.Listing, error) {
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.PageTimeout+extractTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, navigate(s.SearchURL(query))); err != nil {
		return nil, s.classify(ctx, err)
	}

	waitCtx, cancelWait := context.WithTimeout(runCtx, s.cfg.PageTimeout)
	err := settleWait(chromedp.Run(waitCtx, chromedp.WaitReady(resultsSelector, chromedp.ByQuery)))
	cancelWait()
	if err != nil {
		return nil, s.classify(ctx, err)
	}

	var raw []byte
	if err := chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf(extractScript, maxResults), &raw)); err != nil {
		return nil, s.classify(ctx, err)
	}

	var res extractResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, domain.WrapError(err, errcodes.FetchTransient, "decode listings")
	}

	if res.Blocked {
		return nil, domain.NewError(errcodes.FetchTransient, "blocked by marketplace bot check")
	}

	if len(res.Rows) > maxResults {
		res.Rows = res.Rows[:maxResults]
	}

	return res.Rows, nil
}

// navigate переходит по адресу, не дожидаясь события load: реклама и
// трекеры могут держать его дольше, чем рисуется сама выдача.
func navigate(u string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(u).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	})
}

// settleWait превращает истёкшее ожидание карточек в частичную загрузку:
// извлечение пойдёт по тому, что уже есть в DOM.
func settleWait(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Ping проверяет, что браузер жив и отвечает.
func (s *ChromeSession) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.PingTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var n int
	if err := chromedp.Run(pingCtx, chromedp.Evaluate(`1 + 1`, &n)); err != nil {
		return domain.WrapError(err, errcodes.SessionUnusable, "ping slot "+strconv.Itoa(s.slot))
	}

	return nil
}

func (s *ChromeSession) Close() error {
	s.cancelBrowser()
	s.cancelAlloc()
	return nil
}

// classify делит ошибки на временные (повторить запрос) и поломку сессии
// (пересоздать браузер). Отмена вызывающим возвращается как есть.
func (s *ChromeSession) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapError(err, errcodes.FetchTransient, "page load timed out")
	case errors.Is(err, context.Canceled), s.browserCtx.Err() != nil:
		return domain.WrapError(err, errcodes.SessionUnusable, "browser context gone")
	case errors.Is(err, chromedp.ErrInvalidContext):
		return domain.WrapError(err, errcodes.SessionUnusable, "invalid browser context")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "net::err_"), strings.Contains(msg, "429"):
		return domain.WrapError(err, errcodes.FetchTransient, "navigation failed")
	case strings.Contains(msg, "target closed"),
		strings.Contains(msg, "websocket"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "session closed"):
		return domain.WrapError(err, errcodes.SessionUnusable, "browser connection lost")
	default:
		return domain.WrapError(err, errcodes.FetchTransient, "search failed")
	}
}
