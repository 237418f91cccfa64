package navigator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/internal/auth"
	"github.com/taxlien-works/harvest/internal/config"
	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/internal/ratelimit"
	"github.com/taxlien-works/harvest/internal/retry"
	"github.com/taxlien-works/harvest/pkg/models"
)

// ErrEndOfResults signals that pagination is exhausted.
var ErrEndOfResults = errors.New("end of results")

var detailHrefRe = regexp.MustCompile(`fnSubmitThisForm\('([^']+)'\)`)

// Navigator drives the records portal through a single browser tab. It owns
// session establishment, the search form, and the portal's two-level
// pagination: each name-results row expands into a page of document links.
type Navigator struct {
	cfg     *config.Config
	browser *Browser
	limiter ratelimit.Limiter
	retry   retry.Config

	reloggedIn bool

	// pagination cursor
	criterion models.SearchCriterion
	rowIndex  int
	rowCount  int
	pageNum   int
	seen      map[string]bool
}

// New returns a navigator bound to an already running browser.
func New(cfg *config.Config, browser *Browser, limiter ratelimit.Limiter) *Navigator {
	return &Navigator{
		cfg:     cfg,
		browser: browser,
		limiter: limiter,
		retry: retry.Config{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		seen: make(map[string]bool),
	}
}

// BrowserCtx exposes the underlying tab context for components that need to
// run their own browser actions, like the document renderer.
func (n *Navigator) BrowserCtx() context.Context {
	return n.browser.Ctx()
}

// Establish makes sure the tab carries an authenticated portal session,
// reusing a stored one when it still works and logging in otherwise.
func (n *Navigator) Establish(ctx context.Context) error {
	bctx := n.browser.Ctx()

	if session, err := auth.LoadSession(n.cfg.SessionName); err == nil {
		if err := auth.RestoreSession(bctx, session); err != nil {
			log.Warn().Err(err).Msg("Stored session could not be restored")
		} else if ok := n.verifySession(bctx); ok {
			log.Info().Str("session", session.Name).Msg("Reusing stored session")
			return nil
		} else {
			log.Info().Str("session", session.Name).Msg("Stored session expired")
		}
	}

	return n.login(bctx)
}

func (n *Navigator) verifySession(bctx context.Context) bool {
	navCtx, cancel := context.WithTimeout(bctx, n.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(n.cfg.NameSearchURL())); err != nil {
		return false
	}
	if err := auth.DismissAnnouncement(navCtx); err != nil {
		return false
	}
	ok, err := auth.LoggedIn(navCtx)
	return err == nil && ok
}

func (n *Navigator) login(bctx context.Context) error {
	_, err := auth.Login(bctx, auth.LoginOptions{
		LoginURL:    n.cfg.LoginURL,
		LandingURL:  n.cfg.NameSearchURL(),
		Username:    n.cfg.Username,
		Password:    n.cfg.Password,
		SessionName: n.cfg.SessionName,
	})
	if err != nil {
		return errs.SessionInvalidated(err)
	}
	return nil
}

// recoverSession handles a mid-job logout. The portal is allowed to drop the
// session once per job; a second drop aborts.
func (n *Navigator) recoverSession(bctx context.Context) error {
	if n.reloggedIn {
		return errs.SessionInvalidated(fmt.Errorf("session dropped again after re-login"))
	}
	n.reloggedIn = true
	log.Warn().Msg("Session invalidated mid-job, logging in again")
	return n.login(bctx)
}

// OpenSearch submits the name-search form for the criterion and resets the
// pagination cursor to the first results row.
func (n *Navigator) OpenSearch(ctx context.Context, crit models.SearchCriterion) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	bctx := n.browser.Ctx()
	err := retry.WithRetry(ctx, n.retry, func() error {
		return n.submitSearch(bctx, crit)
	})
	if err != nil {
		return err
	}

	n.criterion = crit
	n.rowIndex = 0
	n.pageNum = 1
	n.seen = make(map[string]bool)
	n.rowCount, err = n.countRows(bctx)
	if err != nil {
		return errs.NavigationFailed(n.cfg.NameSearchURL(), err)
	}
	log.Info().Int("rows", n.rowCount).Str("name", crit.SearchName).Msg("Search submitted")
	return nil
}

func (n *Navigator) submitSearch(bctx context.Context, crit models.SearchCriterion) error {
	navCtx, cancel := context.WithTimeout(bctx, n.cfg.NavTimeout)
	defer cancel()

	searchURL := n.cfg.NameSearchURL()
	if err := chromedp.Run(navCtx, chromedp.Navigate(searchURL)); err != nil {
		return errs.NavigationFailed(searchURL, err)
	}
	if err := auth.DismissAnnouncement(navCtx); err != nil {
		return errs.NavigationFailed(searchURL, err)
	}
	if dropped, err := n.sessionDropped(navCtx); err != nil {
		return errs.NavigationFailed(searchURL, err)
	} else if dropped {
		if err := n.recoverSession(bctx); err != nil {
			return err
		}
		return errs.NavigationFailed(searchURL, fmt.Errorf("session restored, retrying search"))
	}

	maxRows := crit.MaxRows
	if maxRows == "" {
		maxRows = config.DefaultMaxRows
	}
	tableType := crit.TableType
	if tableType == "" {
		tableType = config.DefaultTableType
	}

	actions := []chromedp.Action{
		chromedp.WaitVisible(`input[name='txtSearchName']`, chromedp.ByQuery),
		chromedp.SetValue(`#txtPartyType`, crit.PartyType, chromedp.ByQuery),
		chromedp.SetValue(`select[name='txtInstrCode']`, crit.InstrumentType, chromedp.ByQuery),
		chromedp.SetValue(`select[name='intCountyID']`, crit.County, chromedp.ByQuery),
		chromedp.SetValue(`input[name='txtSearchName']`, crit.SearchName, chromedp.ByQuery),
		chromedp.SetValue(`input[name='txtFromDate']`, crit.FromDate, chromedp.ByQuery),
		chromedp.SetValue(`input[name='txtToDate']`, crit.ToDate, chromedp.ByQuery),
		chromedp.SetValue(`select[name='MaxRows']`, maxRows, chromedp.ByQuery),
		chromedp.SetValue(`select[name='TableType']`, tableType, chromedp.ByQuery),
	}
	if crit.IncludeCounties {
		actions = append(actions, chromedp.Evaluate(`(() => {
			const cb = document.querySelector("input[name='bolInclude']");
			if (cb && !cb.checked) { cb.click(); }
		})()`, nil))
	}
	actions = append(actions,
		chromedp.Click(`input[type="button"][value="Search"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`table.name_results`, chromedp.ByQuery),
	)

	if err := chromedp.Run(navCtx, actions...); err != nil {
		return errs.NavigationFailed(searchURL, err)
	}
	return nil
}

func (n *Navigator) countRows(bctx context.Context) (int, error) {
	navCtx, cancel := context.WithTimeout(bctx, n.cfg.NavTimeout)
	defer cancel()
	var count int
	err := chromedp.Run(navCtx, chromedp.Evaluate(
		`document.querySelectorAll("table.name_results input[type='radio']").length`, &count))
	return count, err
}

// NextPage expands the next name-results row into its page of document
// links. When the current results page is exhausted it follows the portal's
// "Next Page" link. Returns ErrEndOfResults when pagination is done, and
// guards against the portal serving the same page twice.
func (n *Navigator) NextPage(ctx context.Context) (*models.ResultsPage, error) {
	bctx := n.browser.Ctx()

	for n.rowIndex >= n.rowCount {
		var advanced bool
		err := retry.WithRetry(ctx, n.retry, func() error {
			var err error
			advanced, err = n.advanceResultsPage(ctx, bctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		if !advanced {
			return nil, ErrEndOfResults
		}
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var page *models.ResultsPage
	err := retry.WithRetry(ctx, n.retry, func() error {
		var err error
		page, err = n.expandRow(bctx, n.rowIndex)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.rowIndex++

	if !n.markSeen(page.Signature) {
		log.Warn().Str("signature", page.Signature).Msg("Repeated results page, stopping pagination")
		return nil, ErrEndOfResults
	}

	page.HasNext = n.rowIndex < n.rowCount
	if !page.HasNext {
		// HasNext is advisory only; the next NextPage call makes the
		// authoritative end-of-results decision under the retry policy.
		has, err := n.hasNextLink(bctx)
		if err != nil {
			log.Debug().Err(err).Msg("Next-page link check failed")
		}
		page.HasNext = has
	}
	return page, nil
}

// markSeen registers a page signature with the pagination cursor. It returns
// false on a repeated signature, meaning the portal re-served a page and
// pagination must stop.
func (n *Navigator) markSeen(sig string) bool {
	if n.seen[sig] {
		return false
	}
	n.seen[sig] = true
	return true
}

// expandRow selects the row's radio button, opens its document list, scrapes
// the detail links, and navigates back to the results list.
func (n *Navigator) expandRow(bctx context.Context, row int) (*models.ResultsPage, error) {
	navCtx, cancel := context.WithTimeout(bctx, n.cfg.NavTimeout)
	defer cancel()

	selectRow := fmt.Sprintf(
		`document.querySelectorAll("table.name_results input[type='radio']")[%d].click()`, row)
	err := chromedp.Run(navCtx,
		chromedp.Evaluate(selectRow, nil),
		chromedp.Click(`input[value="Display Details"]`, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
	)
	if err != nil {
		return nil, errs.NavigationFailed("", err)
	}

	var location, pageHTML string
	err = chromedp.Run(navCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, errs.NavigationFailed("", err)
	}

	urls := n.detailURLs(pageHTML)
	page := &models.ResultsPage{
		URL:        location,
		DetailURLs: urls,
		Signature:  signature(urls),
	}

	// Back to the name list for the next row. The portal's own back button
	// keeps its result state; browser history is the fallback.
	if err := chromedp.Run(navCtx, chromedp.Click(`input[name='bBack']`, chromedp.ByQuery)); err != nil {
		log.Debug().Err(err).Msg("Portal back button missing, using history")
		if err := chromedp.Run(navCtx, chromedp.NavigateBack()); err != nil {
			return nil, errs.NavigationFailed(location, err)
		}
	}
	if err := chromedp.Run(navCtx, chromedp.WaitVisible(`table.name_results`, chromedp.ByQuery)); err != nil {
		return nil, errs.NavigationFailed(location, err)
	}
	return page, nil
}

// detailURLs pulls the fnSubmitThisForm targets out of a document-list page
// and resolves them against the lien section base.
func (n *Navigator) detailURLs(pageHTML string) []string {
	base, err := url.Parse(n.cfg.BaseURL + "/Lien/")
	if err != nil {
		return nil
	}

	var urls []string
	dedupe := make(map[string]bool)
	for _, m := range detailHrefRe.FindAllStringSubmatch(pageHTML, -1) {
		href := html.UnescapeString(m[1])
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref).String()
		if !dedupe[resolved] {
			dedupe[resolved] = true
			urls = append(urls, resolved)
		}
	}
	return urls
}

func (n *Navigator) hasNextLink(bctx context.Context) (bool, error) {
	navCtx, cancel := context.WithTimeout(bctx, n.cfg.NavTimeout)
	defer cancel()
	var has bool
	err := chromedp.Run(navCtx, chromedp.Evaluate(
		`Array.from(document.links).some(a => a.innerText.trim() === "Next Page")`, &has))
	if err != nil {
		return false, err
	}
	return has, nil
}

// advanceResultsPage follows the "Next Page" link. Returns false only when
// the page loaded and carries no such link; a failure to check is a
// navigation error, never end-of-results.
func (n *Navigator) advanceResultsPage(ctx context.Context, bctx context.Context) (bool, error) {
	has, err := n.hasNextLink(bctx)
	if err != nil {
		return false, errs.NavigationFailed("", err)
	}
	if !has {
		return false, nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return false, err
	}

	navCtx, cancel := context.WithTimeout(bctx, n.cfg.NavTimeout)
	defer cancel()
	err = chromedp.Run(navCtx,
		chromedp.Evaluate(`Array.from(document.links).find(a => a.innerText.trim() === "Next Page").click()`, nil),
		chromedp.WaitVisible(`table.name_results`, chromedp.ByQuery),
	)
	if err != nil {
		return false, errs.NavigationFailed("", err)
	}

	n.pageNum++
	n.rowIndex = 0
	count, err := n.countRows(bctx)
	if err != nil {
		return false, errs.NavigationFailed("", err)
	}
	n.rowCount = count
	log.Debug().Int("page", n.pageNum).Int("rows", count).Msg("Advanced to next results page")
	return true, nil
}

// OpenDetail loads one record detail page and returns its HTML. A redirect
// to the login form is treated as a dropped session: the navigator logs in
// again (once per job) and retries the page.
func (n *Navigator) OpenDetail(ctx context.Context, detailURL string) (*models.RawRecordPage, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	bctx := n.browser.Ctx()
	var page *models.RawRecordPage
	err := retry.WithRetry(ctx, n.retry, func() error {
		var err error
		page, err = n.fetchDetail(bctx, detailURL)
		return err
	})
	return page, err
}

func (n *Navigator) fetchDetail(bctx context.Context, detailURL string) (*models.RawRecordPage, error) {
	navCtx, cancel := context.WithTimeout(bctx, n.cfg.NavTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(detailURL)); err != nil {
		return nil, errs.NavigationFailed(detailURL, err)
	}
	if err := auth.DismissAnnouncement(navCtx); err != nil {
		return nil, errs.NavigationFailed(detailURL, err)
	}

	if dropped, err := n.sessionDropped(navCtx); err != nil {
		return nil, errs.NavigationFailed(detailURL, err)
	} else if dropped {
		if err := n.recoverSession(bctx); err != nil {
			return nil, err
		}
		return nil, errs.NavigationFailed(detailURL, fmt.Errorf("session restored, retrying page"))
	}

	var pageHTML string
	if err := chromedp.Run(navCtx, chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery)); err != nil {
		return nil, errs.NavigationFailed(detailURL, err)
	}

	return &models.RawRecordPage{
		URL:       detailURL,
		HTML:      pageHTML,
		FetchedAt: time.Now(),
	}, nil
}

// sessionDropped reports whether the portal bounced us to the login form.
func (n *Navigator) sessionDropped(navCtx context.Context) (bool, error) {
	var location string
	if err := chromedp.Run(navCtx, chromedp.Location(&location)); err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(location), "login.asp"), nil
}

// signature produces an order-independent fingerprint of a page's detail
// links, used to detect the portal serving the same page twice.
func signature(urls []string) string {
	sorted := append([]string(nil), urls...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
