package launchpad

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/GoCodeAlone/launchpad/env"
)

// BannerMode selects where the banner is printed.
type BannerMode int

const (
	BannerOff BannerMode = iota
	BannerConsole
	BannerLog
)

func (m BannerMode) String() string {
	switch m {
	case BannerOff:
		return "off"
	case BannerConsole:
		return "console"
	case BannerLog:
		return "log"
	default:
		return fmt.Sprintf("BannerMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m BannerMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler; it accepts off,
// console and log in any case.
func (m *BannerMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "off", "false":
		*m = BannerOff
	case "console":
		*m = BannerConsole
	case "log":
		*m = BannerLog
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBannerMode, text)
	}
	return nil
}

// BannerLocationProperty names a text file used as the banner.
const BannerLocationProperty = "app.banner.location"

// Banner writes a startup banner.
type Banner interface {
	Print(e *env.Environment, mainHint string, w io.Writer) error
}

// BannerFunc adapts a function to Banner.
type BannerFunc func(e *env.Environment, mainHint string, w io.Writer) error

// Print implements Banner.
func (f BannerFunc) Print(e *env.Environment, mainHint string, w io.Writer) error {
	return f(e, mainHint, w)
}

// TextBanner prints Text after resolving ${...} placeholders against the
// environment. ${app.name} resolves to the main hint when no property
// defines it.
type TextBanner struct {
	Text  string
	Color *color.Color
}

const defaultBannerText = `
  _                        _                     _
 | | __ _ _   _ _ __   ___| |__  _ __   __ _  __| |
 | |/ _' | | | | '_ \ / __| '_ \| '_ \ / _' |/ _' |
 | | (_| | |_| | | | | (__| | | | |_) | (_| | (_| |
 |_|\__,_|\__,_|_| |_|\___|_| |_| .__/ \__,_|\__,_|
                                |_|
 :: ${app.name} ::  ${app.version:}
`

// DefaultBanner returns the banner printed when none is configured.
func DefaultBanner() *TextBanner {
	return &TextBanner{Text: defaultBannerText, Color: color.New(color.FgCyan)}
}

// Print implements Banner.
func (b *TextBanner) Print(e *env.Environment, mainHint string, w io.Writer) error {
	text := strings.ReplaceAll(b.Text, "${app.name}", "${app.name:"+mainHint+"}")
	resolved, err := e.Resolve(text)
	if err != nil {
		return fmt.Errorf("failed to render banner: %w", err)
	}
	if !strings.HasSuffix(resolved, "\n") {
		resolved += "\n"
	}
	if b.Color != nil {
		_, err = b.Color.Fprint(w, resolved)
	} else {
		_, err = io.WriteString(w, resolved)
	}
	return err
}

// printBanner prints the banner according to the banner mode and returns
// it, or nil when the mode is BannerOff.
func (a *Application) printBanner(e *env.Environment) (Banner, error) {
	if a.settings.BannerMode == BannerOff {
		return nil, nil
	}
	banner, err := a.resolveBanner(e)
	if err != nil {
		return nil, err
	}

	if a.settings.BannerMode == BannerLog {
		var buf bytes.Buffer
		if err := banner.Print(e, a.name, &buf); err != nil {
			return nil, err
		}
		a.logger.Info(buf.String())
		return banner, nil
	}
	if err := banner.Print(e, a.name, a.bannerOut); err != nil {
		return nil, err
	}
	return banner, nil
}

func (a *Application) resolveBanner(e *env.Environment) (Banner, error) {
	if a.banner != nil {
		return a.banner, nil
	}
	location, ok, err := e.GetString(BannerLocationProperty)
	if err != nil {
		return nil, err
	}
	if !ok || location == "" {
		return DefaultBanner(), nil
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read banner %s: %w", location, err)
	}
	return &TextBanner{Text: string(data)}, nil
}
