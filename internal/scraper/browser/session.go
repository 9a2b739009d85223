// Package browser drives a headless Chrome for sources that render client side.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures a session.
type Options struct {
	Headless    bool
	PageTimeout time.Duration
	UserAgent   string
}

// Session owns one browser and one stealth page. It is never shared between runs.
type Session struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	log      zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open launches a browser. The caller must Close the session on every exit path.
func Open(ctx context.Context, opts Options) (*Session, error) {
	l := launcher.New().Headless(opts.Headless).Context(ctx)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	p, err := stealth.Page(b)
	if err != nil {
		b.Close()
		l.Kill()
		return nil, fmt.Errorf("opening stealth page: %w", err)
	}
	if opts.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			log.Warn().Err(err).Msg("could not override user agent")
		}
	}

	s := &Session{
		opts:     opts,
		launcher: l,
		browser:  b,
		page:     p,
		log:      log.With().Str("component", "browser").Logger(),
	}
	s.log.Debug().Bool("headless", opts.Headless).Msg("browser session opened")
	return s, nil
}

// Close releases the page, the browser and the launched process. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			s.page.Close()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
		}
		s.log.Debug().Msg("browser session closed")
	})
	return s.closeErr
}

// Navigate loads url and waits for the load event, bounded by the page timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.opts.PageTimeout)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

// WaitFor waits until selector matches, bounded by the page timeout.
func (s *Session) WaitFor(ctx context.Context, selector string) error {
	p := s.page.Context(ctx).Timeout(s.opts.PageTimeout)
	var err error
	if isXPath(selector) {
		_, err = p.ElementX(selector)
	} else {
		_, err = p.Element(selector)
	}
	return err
}

// Click clicks the first element matching selector if it appears within the page timeout.
// It reports false when there is nothing to click.
func (s *Session) Click(ctx context.Context, selector string) (bool, error) {
	p := s.page.Context(ctx).Timeout(s.opts.PageTimeout)
	var (
		el  *rod.Element
		err error
	)
	if isXPath(selector) {
		el, err = p.ElementX(selector)
	} else {
		el, err = p.Element(selector)
	}
	if err != nil {
		return false, nil
	}
	if err := el.ScrollIntoView(); err != nil {
		return false, nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.log.Debug().Err(err).Str("selector", selector).Msg("next control not clickable")
		return false, nil
	}
	// Give client side rendering a moment to replace the old rows.
	s.settle(selector, func() error {
		return s.page.Timeout(2 * time.Second).WaitStable(300 * time.Millisecond)
	})
	return true, nil
}

// settle waits for the page after a click. A page that keeps changing is read as is.
func (s *Session) settle(selector string, wait func() error) {
	if err := wait(); err != nil {
		s.log.Debug().Err(err).Str("selector", selector).Msg("page did not settle after click")
	}
}

// Document returns the current page as a queryable document.
func (s *Session) Document() *Document {
	return &Document{page: s.page}
}

// CurrentURL is the address of the loaded page.
func (s *Session) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
