package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// LoginOptions configures the scripted portal login.
type LoginOptions struct {
	// LoginURL is the portal's login form
	LoginURL string
	// LandingURL is navigated to after login to confirm the session took
	LandingURL string
	Username   string
	Password   string
	// SessionName is the name the captured session is stored under
	SessionName string
}

// Login performs the portal's form login inside an existing browser context
// and persists the captured cookies. The portal occasionally interposes an
// announcement page; it is dismissed before and after the form submit.
func Login(ctx context.Context, opts LoginOptions) (*SessionData, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, fmt.Errorf("portal credentials are required (GSCCCA_USERNAME / GSCCCA_PASSWORD)")
	}

	log.Info().Str("url", opts.LoginURL).Msg("Logging in to records portal")

	err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(opts.LoginURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}

	if err := DismissAnnouncement(ctx); err != nil {
		log.Warn().Err(err).Msg("Announcement dismissal failed, continuing")
	}

	err = chromedp.Run(ctx,
		chromedp.WaitVisible(`input[name='txtUserID']`, chromedp.ByQuery),
		chromedp.SetValue(`input[name='txtUserID']`, opts.Username, chromedp.ByQuery),
		chromedp.SetValue(`input[name='txtPassword']`, opts.Password, chromedp.ByQuery),
		// Keep the session across requests
		chromedp.Evaluate(`(() => {
			const cb = document.querySelector("input[type='checkbox'][name='permanent']");
			if (cb && !cb.checked) { cb.click(); }
		})()`, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fill login form: %w", err)
	}

	// The submit control is an image button; fall back to submitting the form
	// directly when it cannot be clicked.
	if err := chromedp.Run(ctx, chromedp.Click(`img[name='logon']`, chromedp.ByQuery)); err != nil {
		log.Debug().Err(err).Msg("Login button click failed, submitting form via JS")
		if err := chromedp.Run(ctx, chromedp.Evaluate(`document.forms['frmLogin'].submit()`, nil)); err != nil {
			return nil, fmt.Errorf("failed to submit login form: %w", err)
		}
	}

	err = chromedp.Run(ctx, chromedp.Sleep(2*time.Second))
	if err != nil {
		return nil, err
	}

	if err := DismissAnnouncement(ctx); err != nil {
		log.Warn().Err(err).Msg("Announcement dismissal failed, continuing")
	}

	if opts.LandingURL != "" {
		if err := chromedp.Run(ctx, chromedp.Navigate(opts.LandingURL)); err != nil {
			return nil, fmt.Errorf("failed to open landing page: %w", err)
		}
		if err := DismissAnnouncement(ctx); err != nil {
			log.Warn().Err(err).Msg("Announcement dismissal failed, continuing")
		}
	}

	ok, err := LoggedIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify login: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("login failed: no authenticated session detected")
	}

	session, err := CaptureSession(ctx, opts.SessionName, opts.LandingURL)
	if err != nil {
		return nil, err
	}

	if err := SaveSessionWithManifest(session); err != nil {
		log.Warn().Err(err).Msg("Failed to persist session")
	} else {
		log.Info().Str("session", session.Name).Int("cookies", len(session.Cookies)).Msg("Session saved")
	}

	return session, nil
}

// LoggedIn reports whether the current page belongs to an authenticated
// session. The portal renders a logout link on every page when logged in.
func LoggedIn(ctx context.Context) (bool, error) {
	var bodyText string
	err := chromedp.Run(ctx, chromedp.Evaluate(`document.body.innerText`, &bodyText))
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(bodyText), "logout"), nil
}

// DismissAnnouncement checks whether the portal interposed its announcement
// page and clicks through it.
func DismissAnnouncement(ctx context.Context) error {
	var location string
	if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
		return err
	}
	if !strings.Contains(location, "Announcement") {
		return nil
	}

	log.Debug().Str("url", location).Msg("Announcement page detected, dismissing")
	return chromedp.Run(ctx,
		chromedp.SetValue(`#Options`, "dismiss", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(`input[name='Continue']`, chromedp.ByQuery),
	)
}

// CaptureSession reads the browser's cookies into a storable session.
func CaptureSession(ctx context.Context, name, url string) (*SessionData, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found - login may have failed")
	}

	sessionCookies := make([]Cookie, len(cookies))
	maxExpires := 0.0
	for i, c := range cookies {
		sessionCookies[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > maxExpires {
			maxExpires = c.Expires
		}
	}

	session := &SessionData{
		Name:      name,
		URL:       url,
		Cookies:   sessionCookies,
		CreatedAt: time.Now(),
	}
	if maxExpires > 0 {
		session.ExpiresAt = time.Unix(int64(maxExpires), 0)
	}
	return session, nil
}

// RestoreSession injects stored cookies into the browser context so a
// previously established session can be reused without logging in again.
func RestoreSession(ctx context.Context, session *SessionData) error {
	if session == nil || len(session.Cookies) == 0 {
		return fmt.Errorf("session has no cookies")
	}

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range session.Cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}
